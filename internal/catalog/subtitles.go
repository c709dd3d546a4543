package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Subtitles lists the subtitle tracks the backend holds for an episode.
func (c *Client) Subtitles(ctx context.Context, episodeID ID) ([]Track, error) {
	var resp struct {
		Subtitles []Track `json:"subtitles"`
	}
	if err := c.getJSON(ctx, c.http, "subtitles", "/subtitles.php", url.Values{"episode_id": {episodeID.String()}}, &resp); err != nil {
		return nil, err
	}
	return resp.Subtitles, nil
}

// FetchText downloads a plain text resource such as a subtitle file.
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &APIError{Op: "fetch text", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &APIError{Op: "fetch text", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Op: "fetch text", Status: resp.StatusCode, Err: fmt.Errorf("GET %s", rawURL)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return "", &APIError{Op: "fetch text", Err: err}
	}
	return string(b), nil
}

// TranslateRequest asks the backend to translate lines [StartLine, EndLine]
// of its own copy of the episode's base subtitle.
type TranslateRequest struct {
	Lang      string `json:"lang"`
	EpisodeID ID     `json:"episode_id"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (c *Client) Translate(ctx context.Context, r TranslateRequest) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		Text    string `json:"text"`
	}
	if err := c.postJSON(ctx, "translate", "/translate.php", r, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &APIError{Op: "translate", Err: ErrNotSuccessful}
	}
	return strings.TrimRight(resp.Text, "\r\n"), nil
}

// SaveSubtitle stores subtitle content and returns its public URL.
func (c *Client) SaveSubtitle(ctx context.Context, episodeID ID, lang, content string) (string, error) {
	payload := map[string]string{
		"episode_id": episodeID.String(),
		"lang":       lang,
		"content":    content,
	}
	var resp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	if err := c.postJSON(ctx, "save subtitle", "/save_subtitle.php", payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.URL == "" {
		return "", &APIError{Op: "save subtitle", Err: ErrNotSuccessful}
	}
	return resp.URL, nil
}

// SaveSubtitleRecord links a stored subtitle URL to episode and language.
func (c *Client) SaveSubtitleRecord(ctx context.Context, episodeID ID, lang, subtitleURL string) error {
	payload := map[string]string{
		"episode_id": episodeID.String(),
		"lang":       lang,
		"url":        subtitleURL,
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.postJSON(ctx, "subtitle record", "/subtitle_record.php", payload, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Op: "subtitle record", Err: ErrNotSuccessful}
	}
	return nil
}
