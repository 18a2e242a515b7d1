package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Key derives the cache key for an endpoint and its parameters as
// endpoint + ":" + canonical(params). Structurally equal parameters map to
// the same key regardless of map iteration or struct field order.
func Key(endpoint string, params interface{}) (string, error) {
	canonical, err := canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("failed to derive cache key for %s: %w", endpoint, err)
	}
	return endpoint + ":" + canonical, nil
}

// canonicalize round-trips params through a generic JSON value so that object
// keys come out sorted. Absent parameters serialize to the empty string.
func canonicalize(params interface{}) (string, error) {
	if params == nil {
		return "", nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	if bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return "", err
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
