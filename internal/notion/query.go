package notion

import (
	"context"
	"fmt"
)

const maxPageSize = 100

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type pageListResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// QueryDatabase lists every page of the database, following cursors until the
// server reports no more results or limit pages have been accumulated. A
// limit of zero means unbounded. Page order matches the remote response
// order. A 404 is reported as ErrDatabaseNotFound so the caller can degrade
// to an empty run instead of crashing on a misconfigured database ID.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, limit int) ([]Page, error) {
	path := fmt.Sprintf("/v1/databases/%s/query", databaseID)

	var pages []Page
	cursor := ""
	for {
		size := maxPageSize
		if limit > 0 && limit-len(pages) < size {
			size = limit - len(pages)
		}

		var response pageListResponse
		err := c.post(ctx, path, queryRequest{StartCursor: cursor, PageSize: size}, &response)
		if err != nil {
			if IsStatus(err, 404) {
				return nil, fmt.Errorf("%w: database %s", ErrDatabaseNotFound, databaseID)
			}
			return nil, fmt.Errorf("query database: %w", err)
		}

		pages = append(pages, response.Results...)
		if limit > 0 && len(pages) >= limit {
			return pages[:limit], nil
		}
		if !response.HasMore || response.NextCursor == "" {
			return pages, nil
		}
		cursor = response.NextCursor
	}
}
