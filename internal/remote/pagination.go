package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const nextPrefix = "/api/v2/"

type pageLinks struct {
	Next *string `json:"next"`
}

// getAll collects every item of a list endpoint. Paginated responses wrap the
// items in an object under key and point to the next page in _links.next;
// older servers answer with a bare array.
func getAll[T any](ctx context.Context, api API, endpoint, key string) ([]T, error) {
	var all []T
	for endpoint != "" {
		resp, err := api.Get(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		body := bytes.TrimSpace(resp.Body)
		if len(body) > 0 && body[0] == '[' {
			var items []T
			if err := resp.Decode(&items); err != nil {
				return nil, err
			}
			return append(all, items...), nil
		}

		var page map[string]json.RawMessage
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		if raw, ok := page[key]; ok {
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", key, err)
			}
			all = append(all, items...)
		}

		endpoint = ""
		if raw, ok := page["_links"]; ok {
			var links pageLinks
			if err := json.Unmarshal(raw, &links); err != nil {
				return nil, fmt.Errorf("decoding _links: %w", err)
			}
			if links.Next != nil {
				endpoint = strings.TrimPrefix(*links.Next, nextPrefix)
			}
		}
	}
	return all, nil
}
