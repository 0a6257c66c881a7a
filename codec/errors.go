package codec

import (
	"errors"
)

var (
	// ErrEncode wraps any failure to turn a value into an envelope:
	// unregistered or unsupported type, marshaler failure.
	ErrEncode = errors.New("encode failed")
	// ErrDecode wraps any failure to turn an envelope back into a value:
	// unknown type id, truncated or corrupt bytes. A decode failure is
	// reported to the caller of the receive operation that pulled the
	// envelope; it never terminates the receiving process.
	ErrDecode = errors.New("decode failed")
)
