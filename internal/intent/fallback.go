package intent

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	episodeRe  = regexp.MustCompile(`(?i)\b(?:episode|eps?)\s*\.?\s*(\d+)\b`)
	seasonRe   = regexp.MustCompile(`(?i)\b(?:season\s*(\d+)|s(\d+))\b`)
	chapterRe  = regexp.MustCompile(`(?i)\b(?:chapter|chap|ch)\s*\.?\s*(\d+)\b`)
	subtitleRe = regexp.MustCompile(`(?i)\b(?:([\p{L}-]+)\s+)?sub(?:title)?s?\b(?:\s+(?:in\s+)?([\p{L}-]+))?`)
	mediaWords = regexp.MustCompile(`(?i)\b(?:anime|manhwa|manga|manhua|watch|read)\b`)
	junkRe     = regexp.MustCompile(`[^\p{L}\p{N}'!?:&.\- ]+`)
	spacesRe   = regexp.MustCompile(`\s+`)

	animeHint  = regexp.MustCompile(`(?i)\b(?:episode|eps?\s*\.?\s*\d+|season|anime|sub(?:title)?s?)\b`)
	manhwaHint = regexp.MustCompile(`(?i)\b(?:chapter|chap|ch\s*\.?\s*\d+|manhwa|manga|manhua|komik|comic)\b`)
)

var titleCaser = cases.Title(language.English)

// fallbackKind routes on keywords when the model is unavailable.
func fallbackKind(text string) Kind {
	switch {
	case manhwaHint.MatchString(text):
		return KindManhwa
	case animeHint.MatchString(text):
		return KindAnime
	default:
		return KindCasual
	}
}

// fallbackAnime recovers title, episode, season and subtitle language from
// text like "one piece s2 ep 12 subtitle indonesian". Returns nil unless both
// a title and an episode number are present.
func fallbackAnime(text string) *Intent {
	m := episodeRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	episode, err := strconv.Atoi(m[1])
	if err != nil || episode < 1 {
		return nil
	}
	rest := episodeRe.ReplaceAllString(text, " ")

	in := &Intent{Episode: episode}
	if sm := seasonRe.FindStringSubmatch(rest); sm != nil {
		raw := sm[1]
		if raw == "" {
			raw = sm[2]
		}
		if s, err := strconv.Atoi(raw); err == nil && s > 0 {
			in.Season = &s
		}
		rest = seasonRe.ReplaceAllString(rest, " ")
	}
	rest, in.Subtitle, in.SubtitleLang = cutSubtitle(rest)

	in.Title = cleanTitle(rest)
	if in.Title == "" {
		return nil
	}
	return in
}

// fallbackManhwa recovers title and chapter from text like "solo leveling ch 3".
func fallbackManhwa(text string) *ManhwaIntent {
	m := chapterRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	chapter, err := strconv.Atoi(m[1])
	if err != nil || chapter < 1 {
		return nil
	}

	title := cleanTitle(chapterRe.ReplaceAllString(text, " "))
	if title == "" {
		return nil
	}
	return &ManhwaIntent{Title: title, Chapter: chapter}
}

// cutSubtitle removes the subtitle request from s. A language named right
// before or after the keyword ("english sub", "sub indonesian") becomes the
// subtitle language; any other neighbouring word stays in the text.
func cutSubtitle(s string) (rest string, found bool, lang string) {
	loc := subtitleRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, false, ""
	}
	var keep []string
	if loc[2] >= 0 {
		word := s[loc[2]:loc[3]]
		if code, ok := langNames[strings.ToLower(word)]; ok {
			lang = code
		} else {
			keep = append(keep, word)
		}
	}
	if loc[4] >= 0 {
		word := s[loc[4]:loc[5]]
		if code, ok := languageCode(word); ok {
			lang = code
		} else {
			keep = append(keep, word)
		}
	}
	rest = s[:loc[0]] + " " + strings.Join(keep, " ") + " " + s[loc[1]:]
	return rest, true, lang
}

// fillerWords are dropped from the edges of a recovered title only, so titles
// like "Another World With My Smartphone" keep their inner words.
var fillerWords = map[string]bool{
	"please": true, "pls": true, "plz": true,
	"can": true, "could": true, "would": true, "you": true, "u": true,
	"send": true, "give": true, "me": true, "show": true, "get": true, "find": true,
	"with": true, "and": true, "for": true,
}

func trimFiller(words []string) []string {
	for len(words) > 0 && fillerWords[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && fillerWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return words
}

func cleanTitle(s string) string {
	s = mediaWords.ReplaceAllString(s, " ")
	s = junkRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -:.!?")
	s = strings.Join(trimFiller(strings.Fields(strings.ToLower(s))), " ")
	s = strings.Trim(s, " -:.!?")
	if s == "" {
		return ""
	}
	return titleCaser.String(s)
}
