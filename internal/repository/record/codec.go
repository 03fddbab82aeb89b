package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrCorrupt is returned by Decode when no decoding of the value yields JSON.
var ErrCorrupt = errors.New("record: corrupt value")

// Encode renders v as percent-encoded JSON, safe to store as a cookie value. Spaces are
// written as %20 and '+' as %2B, so readers that form-decode cookies see the same value.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("record: encode: %w", err)
	}
	return strings.ReplaceAll(url.QueryEscape(string(raw)), "+", "%20"), nil
}

// Decode parses a record value into v. The value may be raw JSON or percent-encoded JSON.
// A literal '+' in an encoded value is a space. An empty value leaves v untouched and returns nil.
// On error v may be partially filled; callers decode into a fresh value.
func Decode(value string, v any) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	candidates := []string{value}
	if s, err := url.QueryUnescape(value); err == nil && s != value {
		candidates = append(candidates, s)
	}
	var lastErr error
	for _, c := range candidates {
		if !json.Valid([]byte(c)) {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, lastErr)
	}
	return ErrCorrupt
}
