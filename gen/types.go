package gen

import (
	"fmt"
	"time"
)

// Atom is a name of a node.
type Atom string

// Env is a name of an environment variable. Environment values are an
// opaque pass-through: the core copies them from the node to the process
// (and from parent to child) without interpreting them.
type Env string

// PID is a process identifier. It is a plain comparable value and may be
// embedded in any message payload. The Creation field carries the node
// incarnation the process belongs to, so an identifier slot reused after
// a node restart never resolves to the wrong process.
type PID struct {
	Node     Atom   `json:"node"`
	ID       uint64 `json:"id"`
	Creation int64  `json:"creation"`
}

func (p PID) String() string {
	return fmt.Sprintf("<%s.%d.%d>", p.Node, p.Creation, p.ID)
}

// IsZero reports whether p is an empty value rather than a spawned process.
func (p PID) IsZero() bool {
	return p == PID{}
}

// Ref is a unique reference used as a correlation tag for request/response
// messaging and for selective receive filters. A fresh Ref is never reused
// within the node incarnation it was created on.
type Ref struct {
	Node     Atom   `json:"node"`
	Creation int64  `json:"creation"`
	ID       uint64 `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("Ref#<%s.%d.%d>", r.Node, r.Creation, r.ID)
}

// IsZero reports whether r is an empty (untagged) value.
func (r Ref) IsZero() bool {
	return r == Ref{}
}

// ProcessFunc is the entry point of a process. It runs to completion or
// failure inside its own goroutine with no shared mutable state assumed
// reachable: everything crossing the process boundary goes through the
// serializer. Returning nil terminates the process normally, returning an
// error terminates it abnormally.
type ProcessFunc func(process Process, args ...any) error

// ProcessOptions defines options for spawning a new process.
type ProcessOptions struct {
	// MailboxSize limits the number of pending envelopes.
	// Zero means the node default (unbounded unless the node says otherwise).
	MailboxSize int64

	// Env is merged over the environment inherited from the parent.
	Env map[Env]any
}

// CancelFunc cancels a scheduled send. It returns false if the message
// has already been routed.
type CancelFunc func() bool

const (
	// DefaultRequestTimeout is used by Call.
	DefaultRequestTimeout = 5 * time.Second
)
