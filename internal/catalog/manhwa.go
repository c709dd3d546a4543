package catalog

import (
	"context"
	"fmt"
	"net/url"
)

// SearchManhwa returns candidates for title. Any failure yields an empty list.
func (c *Client) SearchManhwa(ctx context.Context, title string) []Entry {
	var resp searchResponse
	if err := c.getJSON(ctx, c.http, "manhwa search", "/manhwa/search.php", url.Values{"q": {title}}, &resp); err != nil {
		c.log.Warn().Err(err).Str("title", title).Msg("manhwa search failed")
		return nil
	}
	return validEntries(resp.Results)
}

func (c *Client) ManhwaDetails(ctx context.Context, id ID) (*ManhwaDetails, error) {
	var d ManhwaDetails
	if err := c.getJSON(ctx, c.http, "manhwa details", "/manhwa/details.php", url.Values{"id": {id.String()}}, &d); err != nil {
		return nil, err
	}
	if d.Title == "" && len(d.Chapters) == 0 {
		return nil, &APIError{Op: "manhwa details", Err: fmt.Errorf("empty details for %s", id)}
	}
	if d.ID == "" {
		d.ID = id
	}
	return &d, nil
}

// ChapterImages returns the ordered page image URLs of a chapter.
func (c *Client) ChapterImages(ctx context.Context, chapterURL string) ([]string, error) {
	var resp struct {
		Images []string `json:"images"`
	}
	if err := c.getJSON(ctx, c.http, "chapter images", "/manhwa/chapter.php", url.Values{"url": {chapterURL}}, &resp); err != nil {
		return nil, err
	}
	out := resp.Images[:0]
	for _, u := range resp.Images {
		if u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}
