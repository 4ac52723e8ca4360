package notion

import (
	"context"
	"fmt"
)

// GetPage fetches a single page's properties by identifier.
func (c *Client) GetPage(ctx context.Context, pageID string) (Page, error) {
	var page Page
	if err := c.get(ctx, "/v1/pages/"+pageID, nil, &page); err != nil {
		return Page{}, fmt.Errorf("get page %s: %w", pageID, err)
	}
	return page, nil
}
