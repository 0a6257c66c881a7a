package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Protobuf returns a codec for proto.Message payloads. The type id is the
// message's full name; decoding resolves it through the global protobuf
// registry, so generated message types are usable with no extra
// registration step. Non-proto values are an encode error: mixed payload
// kinds on one node want the JSON or MessagePack codec instead.
func Protobuf() Codec {
	return protoCodec{}
}

type protoCodec struct{}

func (protoCodec) Name() string {
	return "proto"
}

func (protoCodec) Encode(value any) (string, []byte, error) {
	m, ok := value.(proto.Message)
	if ok == false {
		return "", nil, fmt.Errorf("%w: %T is not a proto.Message", ErrEncode, value)
	}
	data, err := proto.Marshal(m)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return string(proto.MessageName(m)), data, nil
}

func (protoCodec) Decode(typeID string, data []byte) (any, error) {
	mt, err := protoregistry.GlobalTypes.FindMessageByName(protoreflect.FullName(typeID))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown message %q: %v", ErrDecode, typeID, err)
	}
	m := mt.New().Interface()
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return m, nil
}
