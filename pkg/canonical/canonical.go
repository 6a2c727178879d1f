// Package canonical produces a deterministic byte encoding for
// JSON-representable values. Semantically equal values encode identically
// regardless of mapping key order or incidental formatting, which makes the
// output safe to feed into content hashing.
package canonical

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
)

// Encode marshals v to JSON and canonicalizes the result according to
// RFC 8785: object keys sorted lexicographically, a single unambiguous
// representation per scalar, no insignificant whitespace.
//
// As of Go 1.25.x this requires "GOEXPERIMENT=jsonv2" for the json v2 and
// jsontext packages. Canonicalization ensures the same value hashes to the
// same digest from one run to the next.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, EncodingError{Err: err}
	}

	j := jsontext.Value(data)
	if err := j.Canonicalize(); err != nil {
		return nil, EncodingError{Err: err}
	}

	return j, nil
}
