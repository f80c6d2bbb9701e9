package session

import (
	"errors"
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// ErrNotJSONObject is returned by ParseJSON when the payload is valid JSON
// but not an object.
var ErrNotJSONObject = errors.New("session: payload is not a JSON object")

// marshalOptions sorts object keys so equal objects serialise identically.
var marshalOptions = func() oj.Options {
	opts := oj.DefaultOptions
	opts.Sort = true
	return opts
}()

// JSONObject is a decoded JSON object. Values are plain JSON types:
// string, bool, int64, float64, nil, []any and map[string]any.
type JSONObject map[string]any

// JSONBuilder fills a scratch object before it is serialised.
type JSONBuilder func(obj JSONObject) error

// ParseJSON decodes payload, which must hold a JSON object.
func ParseJSON(payload string) (JSONObject, error) {
	v, err := oj.ParseString(payload)
	if err != nil {
		return nil, fmt.Errorf("parsing json payload: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotJSONObject
	}
	return JSONObject(obj), nil
}

// BuildJSON runs build against an empty object and serialises the result
// with its keys sorted.
// A builder error or panic is returned as an error.
func BuildJSON(build JSONBuilder) (payload string, err error) {
	if build == nil {
		return "", errors.New("session: nil json builder")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("json builder panic: %v", r)
		}
	}()

	obj := JSONObject{}
	if err := build(obj); err != nil {
		return "", fmt.Errorf("building json payload: %w", err)
	}

	data, err := oj.Marshal(map[string]any(obj), &marshalOptions)
	if err != nil {
		return "", fmt.Errorf("encoding json payload: %w", err)
	}
	return string(data), nil
}
