package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"nimebot/internal/extract"
)

// ID is an opaque backend identifier. Backends send numbers or strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Text accepts a JSON string, number or null.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*t = Text(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

// Entry is a search hit. Two entries are the same title when their IDs match.
type Entry struct {
	ID     ID     `json:"id"`
	Title  string `json:"title"`
	Poster string `json:"poster"`
}

type Episode struct {
	ID     ID             `json:"id"`
	Number extract.Number `json:"number"`
	Title  string         `json:"title"`
}

type Chapter struct {
	Number extract.Number
	Name   string
	URL    string
}

func (c *Chapter) UnmarshalJSON(b []byte) error {
	var raw struct {
		ChapterNo *extract.Number `json:"chapter_no"`
		Number    *extract.Number `json:"number"`
		Name      string          `json:"name"`
		Title     string          `json:"title"`
		URL       string          `json:"url"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.ChapterNo != nil:
		c.Number = *raw.ChapterNo
	case raw.Number != nil:
		c.Number = *raw.Number
	}
	c.Name = raw.Name
	if c.Name == "" {
		c.Name = raw.Title
	}
	c.URL = raw.URL
	return nil
}

// Stream is the result of a stream generation.
type Stream struct {
	PlayerURL   string
	MasterURL   string
	SubtitleURL string
}

// Track is a subtitle file the backend already has for an episode.
type Track struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

type ManhwaDetails struct {
	ID       ID        `json:"id"`
	Title    string    `json:"title"`
	Score    Text      `json:"score"`
	Status   string    `json:"status"`
	Author   string    `json:"author"`
	Genres   []string  `json:"genres"`
	Synopsis string    `json:"synopsis"`
	Poster   string    `json:"poster"`
	Chapters []Chapter `json:"chapters"`
}

// UsageRecord is one line of the usage log.
type UsageRecord struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Reply     string `json:"reply"`
	Country   string `json:"country"`
	Timestamp string `json:"timestamp"`
}
