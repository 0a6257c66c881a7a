package gen

import (
	"time"
)

// Node is a running instance of the process core. It owns the process
// registry, the link table and the codec every process on this node
// encodes its messages with.
type Node interface {
	// Name returns node name.
	Name() Atom
	// Creation returns the incarnation stamp baked into every PID and Ref
	// issued by this node.
	Creation() int64
	// IsAlive reports whether the node is running.
	IsAlive() bool
	// Uptime returns node uptime in seconds.
	Uptime() int64
	// Log returns the node logger.
	Log() Log

	// Spawn creates a process with no parent.
	Spawn(entry ProcessFunc, options ProcessOptions, args ...any) (PID, error)
	// Send enqueues a message into the target mailbox on behalf of nobody
	// (the envelope carries a zero sender).
	Send(to PID, message any) error
	// SendExit delivers an exit signal to the target process.
	SendExit(to PID, reason error) error
	// Kill requests asynchronous termination of the target process.
	Kill(pid PID) error

	// EnvList returns a copy of the node environment.
	EnvList() map[Env]any
	// Env returns the value of the given environment variable.
	Env(name Env) (any, bool)
	// SetEnv sets an environment variable. Nil value removes it.
	// Processes inherit the node environment at spawn.
	SetEnv(name Env, value any)

	// Wait blocks until the node is stopped and all processes have
	// terminated.
	Wait()
	// WaitWithTimeout is Wait with a limit. Returns ErrTimeout if the node
	// is still running when the duration elapses.
	WaitWithTimeout(d time.Duration) error
	// Stop terminates all processes and shuts the node down.
	Stop()
}
