package notion

import (
	"context"
	"fmt"
	"net/url"
)

type commentListResponse struct {
	Results []Comment `json:"results"`
}

// ListComments fetches the comments attached to a page.
func (c *Client) ListComments(ctx context.Context, pageID string) ([]Comment, error) {
	query := url.Values{"block_id": []string{pageID}}
	var response commentListResponse
	if err := c.get(ctx, "/v1/comments", query, &response); err != nil {
		return nil, fmt.Errorf("list comments for page %s: %w", pageID, err)
	}
	return response.Results, nil
}
