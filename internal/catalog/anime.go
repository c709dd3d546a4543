package catalog

import (
	"context"
	"fmt"
	"net/url"

	"nimebot/internal/retry"
)

type searchResponse struct {
	Results []Entry `json:"results"`
}

// SearchAnime returns candidates for title. Any failure yields an empty list.
func (c *Client) SearchAnime(ctx context.Context, title string) []Entry {
	var resp searchResponse
	if err := c.getJSON(ctx, c.http, "search", "/search.php", url.Values{"q": {title}}, &resp); err != nil {
		c.log.Warn().Err(err).Str("title", title).Msg("anime search failed")
		return nil
	}
	return validEntries(resp.Results)
}

// Episodes lists the episodes of an anime.
func (c *Client) Episodes(ctx context.Context, animeID ID) ([]Episode, error) {
	var resp struct {
		Episodes []Episode `json:"episodes"`
	}
	if err := c.getJSON(ctx, c.http, "episodes", "/episodes.php", url.Values{"id": {animeID.String()}}, &resp); err != nil {
		return nil, err
	}
	return resp.Episodes, nil
}

type streamResponse struct {
	Success     bool   `json:"success"`
	PlayerURL   string `json:"player_url"`
	MasterURL   string `json:"master_url"`
	SubtitleURL string `json:"subtitle_url"`
	Message     string `json:"message"`
}

// GenerateStream asks the backend to prepare a stream for an episode. Each
// attempt has its own timeout; network errors, timeouts, non-2xx and
// success=false all count as a failed attempt. The error after the last
// attempt is terminal for the request.
func (c *Client) GenerateStream(ctx context.Context, episodeID ID) (*Stream, error) {
	attempt := 0
	resp, err := retry.DoValue(ctx, c.cfg.StreamRetry, func(ctx context.Context) (streamResponse, error) {
		attempt++
		var r streamResponse
		err := c.getJSON(ctx, c.stream, "generate", "/generate.php", url.Values{"episode_id": {episodeID.String()}}, &r)
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Str("episode_id", episodeID.String()).Msg("stream generation attempt failed")
		}
		return r, err
	}, func(r streamResponse) error {
		if !r.Success || r.PlayerURL == "" {
			c.log.Warn().Int("attempt", attempt).Str("episode_id", episodeID.String()).Str("message", r.Message).Msg("stream generation not successful")
			return &APIError{Op: "generate", Err: ErrNotSuccessful}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate stream for episode %s: %w", episodeID, err)
	}

	return &Stream{
		PlayerURL:   resp.PlayerURL,
		MasterURL:   resp.MasterURL,
		SubtitleURL: resp.SubtitleURL,
	}, nil
}

func validEntries(in []Entry) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		if e.ID != "" {
			out = append(out, e)
		}
	}
	return out
}
