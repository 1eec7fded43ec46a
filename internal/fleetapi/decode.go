package fleetapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeList normalizes a list response. The fleet API answers some list
// calls with a bare array and others with an object wrapping the array under
// one of keys; both become a []T. A body that is neither, or whose keys are
// all missing, yields an empty list.
func DecodeList[T any](body []byte, keys ...string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []T{}, nil
	}

	switch body[0] {
	case '[':
		var out []T
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if out == nil {
			out = []T{}
		}
		return out, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		for _, k := range keys {
			raw, ok := envelope[k]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] != '[' {
				continue
			}
			var out []T
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("decode %q: %w", k, err)
			}
			return out, nil
		}
	}
	return []T{}, nil
}
