package node

import (
	"github.com/loom-services/loom/codec"
	"github.com/loom-services/loom/gen"
	"go.uber.org/zap"
)

const (
	// PID numbering starts above the range reserved for internal use.
	startPID = 1000
)

// Options defines bootstrapping options of the node.
type Options struct {
	// Codec encodes every message crossing a process boundary on this
	// node. Default is codec.JSON().
	Codec codec.Codec

	// Logger is the sink behind the gen.Log interface. Default is
	// zap.NewNop().
	Logger *zap.Logger

	// LogLevel is the initial level of the node logger. Processes inherit
	// it at spawn time.
	LogLevel gen.LogLevel

	// MailboxSize caps process mailboxes unless a process overrides it at
	// spawn time. Zero means unbounded.
	MailboxSize int64

	// Env is the node environment processes inherit at spawn.
	Env map[gen.Env]any
}

const (
	procStateRunning     int32 = 1
	procStateTerminating int32 = 2
	procStateTerminated  int32 = 3
)

// processKill unwinds the entry function of a process that observed an
// exit signal at a suspension point. The runner recognizes it; nothing
// else is supposed to.
type processKill struct {
	reason error
}
