package catalog

import "context"

// LogUsage records one handled message. Callers treat failures as non-fatal.
func (c *Client) LogUsage(ctx context.Context, rec UsageRecord) error {
	return c.postJSON(ctx, "log usage", "/log.php", rec, nil)
}
