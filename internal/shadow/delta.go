package shadow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// RemoteRequest is one desired field value taken from a delta notification.
type RemoteRequest struct {
	Field Field
	Value uint32
}

// ParseDelta extracts the requested values of the owned fields from a delta
// notification.
//
// Both the full delta document ({"version":..,"state":{"led":1},...}) and a
// bare fragment ({"led":1}) are accepted. Keys not in owned are skipped
// whatever their value. Requests are returned sorted by field name. An owned
// key whose value is not a non-negative integer is skipped and reported
// through the returned error, alongside the requests that did parse. A
// payload that is not a JSON object yields no requests and
// ErrMalformedNotification.
func ParseDelta(payload []byte, owned ...Field) ([]RemoteRequest, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedNotification)
	}

	state := doc
	if raw, ok := doc["state"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil || inner == nil {
			return nil, fmt.Errorf("%w: state is not an object", ErrMalformedNotification)
		}
		state = inner
	}

	keys := make([]string, 0, len(owned))
	for _, f := range owned {
		if _, ok := state[string(f)]; ok {
			keys = append(keys, string(f))
		}
	}
	sort.Strings(keys)

	var (
		requests []RemoteRequest
		errs     []error
	)
	for _, k := range keys {
		v, err := parseUint32(state[k])
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: field %q: %w", ErrMalformedNotification, k, err))
			continue
		}
		requests = append(requests, RemoteRequest{Field: Field(k), Value: v})
	}

	return requests, errors.Join(errs...)
}

func parseUint32(raw json.RawMessage) (uint32, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("value %s is not a number", raw)
	}
	n, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value %s is not an integer", num)
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("value %d out of range", n)
	}
	return uint32(n), nil
}
