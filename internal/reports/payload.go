package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodePayload reads exactly one JSON value from r. Numbers are kept as
// json.Number so integers stay integers. Malformed input and trailing
// data after the value are ErrInvalidPayload.
func DecodePayload(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidPayload)
	}
	return payload, nil
}
