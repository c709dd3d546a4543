package catalog

// SelectEpisode returns the episode numbered n. When there is none it returns
// the highest numbered episode with exact=false. ok is false only for an
// empty list.
func SelectEpisode(episodes []Episode, n int) (ep Episode, exact bool, ok bool) {
	if len(episodes) == 0 {
		return Episode{}, false, false
	}

	latest := episodes[0]
	for _, e := range episodes {
		if float64(e.Number) == float64(n) {
			return e, true, true
		}
		if e.Number > latest.Number {
			latest = e
		}
	}
	return latest, false, true
}

// SelectChapter returns the chapter numbered n, or the first listed chapter
// with exact=false.
func SelectChapter(chapters []Chapter, n int) (ch Chapter, exact bool, ok bool) {
	if len(chapters) == 0 {
		return Chapter{}, false, false
	}
	for _, c := range chapters {
		if float64(c.Number) == float64(n) {
			return c, true, true
		}
	}
	return chapters[0], false, true
}
