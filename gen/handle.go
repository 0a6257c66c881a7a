package gen

import (
	"time"
)

// Handle is a typed process reference. The type parameter is a phantom tag
// naming the payload type the target expects; it exists at compile time
// only, the wire value is the PID. Handles are plain values: embed them in
// payloads, compare them, copy them. Holding a Handle implies no lifetime
// guarantee about the target.
type Handle[M any] struct {
	PID PID `json:"pid"`
}

// HandleFor wraps a PID into a typed handle.
func HandleFor[M any](pid PID) Handle[M] {
	return Handle[M]{PID: pid}
}

// Send sends a message to the target on behalf of the given process.
func (h Handle[M]) Send(from Process, message M) error {
	return from.Send(h.PID, message)
}

// Call performs a synchronous request to the target on behalf of the
// given process.
func (h Handle[M]) Call(from Process, request M) (any, error) {
	return from.Call(h.PID, request)
}

// CallWithTimeout is Call with an explicit timeout. Zero timeout blocks
// until a reply arrives.
func (h Handle[M]) CallWithTimeout(from Process, request M, timeout time.Duration) (any, error) {
	return from.CallWithTimeout(h.PID, request, timeout)
}

// Equal reports whether both handles reference the same process.
func (h Handle[M]) Equal(other Handle[M]) bool {
	return h.PID == other.PID
}

func (h Handle[M]) String() string {
	return h.PID.String()
}
