package notion

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
)

type blockListResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}

// FetchBlockTree returns the full content tree beneath the given block. Each
// level is paginated with the usual cursor contract; subtrees of children
// that declare descendants are fetched concurrently and joined back by
// sibling index, so the returned slice is always in document order no matter
// which subtree resolved first.
func (c *Client) FetchBlockTree(ctx context.Context, blockID string) ([]Block, error) {
	path := fmt.Sprintf("/v1/blocks/%s/children", blockID)

	var blocks []Block
	cursor := ""
	for {
		query := url.Values{"page_size": []string{strconv.Itoa(maxPageSize)}}
		if cursor != "" {
			query.Set("start_cursor", cursor)
		}

		var response blockListResponse
		if err := c.get(ctx, path, query, &response); err != nil {
			return nil, fmt.Errorf("fetch children of block %s: %w", blockID, err)
		}

		blocks = append(blocks, response.Results...)
		if !response.HasMore || response.NextCursor == "" {
			break
		}
		cursor = response.NextCursor
	}

	if err := c.fetchSubtrees(ctx, blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// fetchSubtrees fans out one goroutine per child with descendants and joins
// the results into Children slots by index.
func (c *Client) fetchSubtrees(ctx context.Context, blocks []Block) error {
	var wg sync.WaitGroup
	errs := make([]error, len(blocks))
	for i := range blocks {
		if !blocks[i].HasChildren {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			children, err := c.FetchBlockTree(ctx, blocks[i].ID)
			if err != nil {
				errs[i] = err
				return
			}
			blocks[i].Children = children
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
