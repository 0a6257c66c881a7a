package gen

import (
	"errors"
)

var (
	ErrNodeTerminated = errors.New("node terminated")

	ErrProcessMailboxFull = errors.New("process mailbox is full")
	ErrProcessUnknown     = errors.New("unknown process")
	ErrProcessIncarnation = errors.New("process ID belongs to the previous incarnation")
	ErrProcessTerminated  = errors.New("process terminated")

	ErrSpawnEntry = errors.New("spawn: entry function is not defined")

	ErrTimeout    = errors.New("timed out")
	ErrIncorrect  = errors.New("incorrect value or argument")
	ErrNotAllowed = errors.New("not allowed")
	ErrTaken      = errors.New("resource is taken")
)

// Termination reasons. Any reason other than TerminateReasonNormal is an
// abnormal termination and is propagated over links.
var (
	TerminateReasonNormal = errors.New("normal")
	TerminateReasonKill   = errors.New("kill")
	TerminateReasonPanic  = errors.New("panic")
)
