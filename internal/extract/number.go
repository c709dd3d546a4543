package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?`)

// Number decodes a JSON number, a numeric string ("12", "12.5") or null.
// Backends and models disagree on how to encode episode and chapter numbers.
// A string with a numeric prefix ("12 END") keeps the prefix; any other
// string ("OVA", "Prologue") decodes to 0 so one odd entry never fails a
// whole listing.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		*n = Number(parseLeading(s))
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func parseLeading(s string) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	f, err := strconv.ParseFloat(leadingNumberRe.FindString(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// Int truncates toward zero.
func (n Number) Int() int { return int(n) }

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}
