package gateway

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// PageMeta carries the backend's pagination envelope fields.
type PageMeta struct {
	Count    int64  `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// envelope mirrors the backend's paginated response shape. A response is
// recognized as paginated by the presence of a results list alongside a
// count field; anything else passes through untouched.
type envelope struct {
	Count    *int64          `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

func decodeBody(body []byte, out any) (*PageMeta, error) {
	if isSlicePointer(out) {
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil && env.Count != nil && env.Results != nil {
			if err := json.Unmarshal(env.Results, out); err != nil {
				return nil, fmt.Errorf("failed to decode paginated results: %w", err)
			}
			meta := &PageMeta{Count: *env.Count}
			if env.Next != nil {
				meta.Next = *env.Next
			}
			if env.Previous != nil {
				meta.Previous = *env.Previous
			}
			return meta, nil
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return nil, nil
}

func isSlicePointer(out any) bool {
	t := reflect.TypeOf(out)
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Slice
}
