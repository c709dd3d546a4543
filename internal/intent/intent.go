// Package intent turns free text into a routed, structured request.
package intent

// Kind is the coarse route of a message.
type Kind string

const (
	KindCasual  Kind = "casual"
	KindAnime   Kind = "anime"
	KindManhwa  Kind = "manhwa"
	KindUnknown Kind = "unknown"
)

func parseKind(s string) Kind {
	switch Kind(s) {
	case KindCasual, KindAnime, KindManhwa:
		return Kind(s)
	default:
		return KindUnknown
	}
}

// Intent is an anime episode request. When NotFound is set no other field
// carries meaning.
type Intent struct {
	Title        string
	Season       *int
	Episode      int
	Subtitle     bool
	SubtitleLang string
	NotFound     bool
}

// ManhwaIntent is a chapter request. When NotFound is set no other field
// carries meaning.
type ManhwaIntent struct {
	Title    string
	Chapter  int
	NotFound bool
}

// Usable reports whether the intent can be looked up.
func (i *Intent) Usable() bool {
	return i != nil && !i.NotFound && i.Title != ""
}

func (i *ManhwaIntent) Usable() bool {
	return i != nil && !i.NotFound && i.Title != ""
}
