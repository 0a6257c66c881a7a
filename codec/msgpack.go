package codec

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// MessagePack returns a codec producing MessagePack envelopes. Denser
// than JSON and faithful to Go's numeric types on the wire.
func MessagePack() Codec {
	return msgpackCodec{}
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string {
	return "msgpack"
}

func (msgpackCodec) Encode(value any) (string, []byte, error) {
	id, err := typeIDOf(value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return id, data, nil
}

func (msgpackCodec) Decode(typeID string, data []byte) (any, error) {
	t, err := typeFor(typeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	value := reflect.New(t)
	if err := msgpack.Unmarshal(data, value.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return value.Elem().Interface(), nil
}
