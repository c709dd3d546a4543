package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// FetchImage downloads an image, retrying once through the image proxy when
// the origin refuses or fails.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := c.fetchBytes(ctx, rawURL, true)
	if err == nil {
		return data, nil
	}
	if c.cfg.ImageProxyURL == "" {
		return nil, err
	}

	c.log.Debug().Err(err).Str("url", rawURL).Msg("image fetch failed, trying proxy")
	proxied, perr := c.fetchBytes(ctx, c.proxied(rawURL), false)
	if perr != nil {
		return nil, errors.Join(err, perr)
	}
	return proxied, nil
}

func (c *Client) proxied(rawURL string) string {
	sep := "?"
	if strings.Contains(c.cfg.ImageProxyURL, "?") {
		sep = "&"
	}
	return c.cfg.ImageProxyURL + sep + "url=" + url.QueryEscape(rawURL)
}

func (c *Client) fetchBytes(ctx context.Context, rawURL string, withReferer bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &APIError{Op: "fetch image", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,*/*")
	if withReferer {
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: "fetch image", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: "fetch image", Status: resp.StatusCode, Err: fmt.Errorf("GET %s", rawURL)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBody))
	if err != nil {
		return nil, &APIError{Op: "fetch image", Err: err}
	}
	if len(data) == 0 {
		return nil, &APIError{Op: "fetch image", Status: resp.StatusCode, Err: fmt.Errorf("empty body from %s", rawURL)}
	}
	return data, nil
}
