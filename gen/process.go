package gen

import (
	"time"
)

// Process is the interface a running process uses to interact with the
// rest of the system. It is handed to the entry function and must not be
// used from any other goroutine: a process is single-threaded by
// construction and its mailbox is drained only by its owner.
type Process interface {
	// Node returns the node this process belongs to.
	Node() Node
	// PID returns the process identifier.
	PID() PID
	// Parent returns the PID of the process that spawned this one.
	// It is a zero value for processes spawned from the node directly.
	Parent() PID
	// Uptime returns process uptime in seconds.
	Uptime() int64
	// IsAlive reports whether the process hasn't been signaled to terminate.
	IsAlive() bool
	// Log returns the process logger.
	Log() Log

	// EnvList returns a copy of the process environment.
	EnvList() map[Env]any
	// Env returns the value of the given environment variable.
	Env(name Env) (any, bool)
	// SetEnv sets an environment variable. Nil value removes it.
	SetEnv(name Env, value any)

	// Spawn creates a new process running the given entry function.
	// The child starts executing concurrently with the caller.
	Spawn(entry ProcessFunc, options ProcessOptions, args ...any) (PID, error)
	// SpawnLink is Spawn with a link to the caller established before the
	// child runs its first instruction, leaving no window in which the
	// child could fail unobserved.
	SpawnLink(entry ProcessFunc, options ProcessOptions, args ...any) (PID, error)

	// Send encodes the message and enqueues it into the target mailbox.
	// It never blocks. Sending to a terminated process is a silent drop;
	// use links to observe failures. Messages sent to the same target
	// keep their relative order.
	Send(to PID, message any) error
	// SendTagged is Send with a correlation tag attached to the envelope.
	SendTagged(to PID, tag Ref, message any) error
	// SendResponse sends a reply carrying the correlation tag taken from
	// a received request envelope.
	SendResponse(to PID, tag Ref, message any) error
	// SendAfter schedules a message to be sent after the given duration.
	// The message is encoded immediately. The returned CancelFunc reports
	// whether the send was canceled before being routed.
	SendAfter(to PID, message any, after time.Duration) (CancelFunc, error)
	// SendExit delivers an exit signal to the target. A trapping target
	// receives it as a MessageExit envelope; otherwise it terminates with
	// the given reason. TerminateReasonKill cannot be trapped.
	SendExit(to PID, reason error) error

	// Receive blocks until any envelope arrives or the timeout elapses.
	// Zero timeout blocks indefinitely. On timeout it returns ErrTimeout.
	// The envelope payload is decoded at this point; a decode failure is
	// returned to the caller along with the envelope metadata, and the
	// envelope is consumed.
	Receive(timeout time.Duration) (Envelope, error)
	// ReceiveTagged is a selective receive: it consumes the first envelope
	// whose tag is one of the given refs, leaving non-matching envelopes
	// in place and in order.
	ReceiveTagged(timeout time.Duration, tags ...Ref) (Envelope, error)

	// Call sends a request tagged with a fresh Ref and waits for the reply
	// carrying the same tag, using DefaultRequestTimeout. The callee is an
	// ordinary process: it receives the request envelope and answers with
	// SendResponse.
	Call(to PID, request any) (any, error)
	// CallWithTimeout is Call with an explicit timeout. Zero timeout
	// blocks until a reply arrives.
	CallWithTimeout(to PID, request any, timeout time.Duration) (any, error)

	// Link creates a bidirectional link with the target. Linking is
	// idempotent; linking to self is a no-op. Linking to a terminated
	// process returns ErrProcessUnknown.
	Link(target PID) error
	// Unlink removes the link with the target.
	Unlink(target PID) error
	// Links returns the list of linked processes.
	Links() []PID
	// SetTrapExit defines how termination of linked processes is handled:
	// false (default) cascades abnormal exits, true converts any linked
	// exit into a MessageExit delivered through the mailbox.
	SetTrapExit(trap bool)
	// TrapExit returns the current trap setting.
	TrapExit() bool

	// Kill requests asynchronous termination of the target process. The
	// target stops at its next suspension point and runs no further
	// application logic past observing the signal. The outcome is
	// observable only through links.
	Kill(target PID) error

	// MakeRef returns a new unique reference.
	MakeRef() Ref
}
