package intent

import (
	"strings"

	"golang.org/x/text/language"
)

var langNames = map[string]string{
	"english":    "en",
	"inggris":    "en",
	"indonesian": "id",
	"indonesia":  "id",
	"indo":       "id",
	"bahasa":     "id",
	"malay":      "ms",
	"melayu":     "ms",
	"spanish":    "es",
	"espanol":    "es",
	"español":    "es",
	"portuguese": "pt",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"arabic":     "ar",
	"hindi":      "hi",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"thai":       "th",
	"vietnamese": "vi",
	"turkish":    "tr",
	"russian":    "ru",
	"tagalog":    "tl",
	"filipino":   "tl",
}

// NormalizeLang maps a language name or tag to its base ISO 639 code
// ("Indonesian", "indo", "id-ID" -> "id"). Unknown names are returned
// lower-cased so the backend can still try them.
func NormalizeLang(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if code, ok := langNames[s]; ok {
		return code
	}
	if tag, err := language.Parse(s); err == nil {
		base, conf := tag.Base()
		if conf != language.No {
			return base.String()
		}
	}
	return s
}

// languageCode reports whether word names a language, either by a known name
// or as a two-letter ISO 639 code.
func languageCode(word string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if code, ok := langNames[w]; ok {
		return code, true
	}
	if len(w) != 2 {
		return "", false
	}
	base, err := language.ParseBase(w)
	if err != nil {
		return "", false
	}
	return base.String(), true
}
