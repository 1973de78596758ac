// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Limits applied to every decode. Collaborator replies are small; a
// frame past these bounds is malformed or hostile.
const (
	maxNestedLevels  = 32
	maxArrayElements = 4096
	maxMapPairs      = 4096
)

var (
	encMode = newEncMode()
	decMode = newDecMode()
)

func newEncMode() cbor.EncMode {
	options := cbor.CoreDetEncOptions()
	// Trace and span IDs implement MarshalText and go out as text.
	options.TextMarshaler = cbor.TextMarshalerTextString
	// Timestamps stay readable when a message is dumped as JSON.
	options.Time = cbor.TimeRFC3339Nano
	mode, err := options.EncMode()
	if err != nil {
		panic("codec: building CBOR encoder: " + err.Error())
	}
	return mode
}

func newDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		// Free-form attribute maps decode as map[string]any.
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler:  cbor.TextUnmarshalerTextString,
		MaxNestedLevels:  maxNestedLevels,
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
	}.DecMode()
	if err != nil {
		panic("codec: building CBOR decoder: " + err.Error())
	}
	return mode
}

// Marshal encodes v with Core Deterministic Encoding: equal values
// always produce equal bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v, ignoring fields v does not declare.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage holds an undecoded value until its action is known.
type RawMessage = cbor.RawMessage

// NewEncoder writes a stream of deterministic CBOR values to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder reads a stream of CBOR values from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
