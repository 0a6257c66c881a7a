// Package codec implements the message serialization layer: a pluggable
// codec turning a typed value into a byte envelope and back. Exactly one
// codec is chosen per node; sender and receiver always agree by
// construction. Decoding targets the concrete Go type resolved from the
// envelope's type id, so numeric values survive the round trip exactly.
package codec

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/loom-services/loom/gen"
)

// Codec converts a typed value to/from an encoded payload. Encode returns
// the type id the receiver resolves the concrete type from. Both methods
// are synchronous and safe for concurrent use.
type Codec interface {
	Name() string
	Encode(value any) (typeID string, data []byte, err error)
	Decode(typeID string, data []byte) (any, error)
}

var registered sync.Map // type id (string) -> reflect.Type

// RegisterTypeOf makes the type of the given value known to the codecs,
// so a decoded envelope carrying its type id can be materialized back
// into the same concrete type. Registration is process-wide and is
// usually done from an init function. Basic types, gen.PID, gen.Ref and
// time.Time need no registration.
func RegisterTypeOf(v any) error {
	t := reflect.TypeOf(v)
	if t == nil {
		return fmt.Errorf("unable to register nil value")
	}
	if t.Kind() == reflect.Pointer {
		return fmt.Errorf("pointer type is not supported")
	}
	if _, basic := basicTypeID(v); basic {
		return fmt.Errorf("unable to register a basic type")
	}
	if t.Name() == "" {
		return fmt.Errorf("unable to register an unnamed type")
	}

	name := regTypeName(t)
	if prev, exist := registered.LoadOrStore(name, t); exist {
		if prev.(reflect.Type) == t {
			return nil
		}
		return gen.ErrTaken
	}
	return nil
}

func regTypeName(t reflect.Type) string {
	return fmt.Sprintf("#%s/%s", t.PkgPath(), t.Name())
}

// typeIDOf resolves the type id an encoder stamps on the envelope.
func typeIDOf(v any) (string, error) {
	if id, ok := basicTypeID(v); ok {
		return id, nil
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return "", fmt.Errorf("nil value")
	}
	if t.Kind() == reflect.Pointer {
		return "", fmt.Errorf("pointer value is not serializable")
	}
	name := regTypeName(t)
	if _, exist := registered.Load(name); exist == false {
		return "", fmt.Errorf("unregistered type %s", t)
	}
	return name, nil
}

// typeFor resolves the concrete type a decoder materializes.
func typeFor(typeID string) (reflect.Type, error) {
	if t, ok := basicTypes[typeID]; ok {
		return t, nil
	}
	if t, ok := registered.Load(typeID); ok {
		return t.(reflect.Type), nil
	}
	return nil, fmt.Errorf("unknown type id %q", typeID)
}

var basicTypes = map[string]reflect.Type{
	"bool":    reflect.TypeOf(false),
	"int":     reflect.TypeOf(int(0)),
	"int8":    reflect.TypeOf(int8(0)),
	"int16":   reflect.TypeOf(int16(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"uint":    reflect.TypeOf(uint(0)),
	"uint8":   reflect.TypeOf(uint8(0)),
	"uint16":  reflect.TypeOf(uint16(0)),
	"uint32":  reflect.TypeOf(uint32(0)),
	"uint64":  reflect.TypeOf(uint64(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
	"string":  reflect.TypeOf(""),
	"binary":  reflect.TypeOf([]byte(nil)),

	"time.Time":       reflect.TypeOf(time.Time{}),
	"gen.Atom":        reflect.TypeOf(gen.Atom("")),
	"gen.PID":         reflect.TypeOf(gen.PID{}),
	"gen.Ref":         reflect.TypeOf(gen.Ref{}),
	"gen.MessageExit": reflect.TypeOf(gen.MessageExit{}),
}

func basicTypeID(v any) (string, bool) {
	switch v.(type) {
	case bool:
		return "bool", true
	case int:
		return "int", true
	case int8:
		return "int8", true
	case int16:
		return "int16", true
	case int32:
		return "int32", true
	case int64:
		return "int64", true
	case uint:
		return "uint", true
	case uint8:
		return "uint8", true
	case uint16:
		return "uint16", true
	case uint32:
		return "uint32", true
	case uint64:
		return "uint64", true
	case float32:
		return "float32", true
	case float64:
		return "float64", true
	case string:
		return "string", true
	case []byte:
		return "binary", true
	case time.Time:
		return "time.Time", true
	case gen.Atom:
		return "gen.Atom", true
	case gen.PID:
		return "gen.PID", true
	case gen.Ref:
		return "gen.Ref", true
	case gen.MessageExit:
		return "gen.MessageExit", true
	}
	return "", false
}
