package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// JSON returns the default codec. Decoding unmarshals into the concrete
// type resolved from the type id, so integers are parsed as integers
// rather than coerced through float64.
func JSON() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Encode(value any) (string, []byte, error) {
	id, err := typeIDOf(value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return id, data, nil
}

func (jsonCodec) Decode(typeID string, data []byte) (any, error) {
	t, err := typeFor(typeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	value := reflect.New(t)
	if err := json.Unmarshal(data, value.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return value.Elem().Interface(), nil
}
