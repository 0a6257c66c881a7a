package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestProtobufRoundTrip(t *testing.T) {
	c := Protobuf()

	sent := wrapperspb.String("hello")
	id, data, err := c.Encode(sent)
	if err != nil {
		t.Fatal(err)
	}
	if id != "google.protobuf.StringValue" {
		t.Fatalf("unexpected type id %q", id)
	}

	decoded, err := c.Decode(id, data)
	if err != nil {
		t.Fatal(err)
	}
	received, ok := decoded.(proto.Message)
	if ok == false {
		t.Fatalf("decoded value is %T, not a proto.Message", decoded)
	}
	if proto.Equal(sent, received) == false {
		t.Fatalf("round trip mismatch: sent %v, got %v", sent, received)
	}
}

func TestProtobufEncodeFailure(t *testing.T) {
	c := Protobuf()

	if _, _, err := c.Encode("not a proto message"); errors.Is(err, ErrEncode) == false {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}

func TestProtobufDecodeFailure(t *testing.T) {
	c := Protobuf()

	if _, err := c.Decode("unknown.Message", nil); errors.Is(err, ErrDecode) == false {
		t.Fatal("expected ErrDecode for unknown message name")
	}

	sent := wrapperspb.Int64(42)
	id, data, err := c.Encode(sent)
	if err != nil {
		t.Fatal(err)
	}
	corrupt := append([]byte{0xff, 0xff, 0xff}, data...)
	if _, err := c.Decode(id, corrupt); errors.Is(err, ErrDecode) == false {
		t.Fatal("expected ErrDecode for corrupt data")
	}
}
