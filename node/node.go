package node

import (
	"context"
	"sync"
	"time"

	"github.com/loom-services/loom/codec"
	"github.com/loom-services/loom/gen"
	"go.uber.org/zap"
)

type node struct {
	name     gen.Atom
	creation int64

	ctx  context.Context
	stop context.CancelFunc

	codec codec.Codec
	log   *log

	defaultMailboxSize int64

	env      map[gen.Env]any
	mutexEnv sync.RWMutex

	nextID  uint64
	uniqID  uint64
	links   *links
	wg      sync.WaitGroup
	stopped sync.Once

	processes      map[uint64]*process
	mutexProcesses sync.RWMutex
}

// Start creates a new node with the given name.
func Start(name gen.Atom, options Options) (gen.Node, error) {
	return StartWithContext(context.Background(), name, options)
}

// StartWithContext creates a new node bound to the given context.
// Canceling the context shuts the node down the same way Stop does.
func StartWithContext(ctx context.Context, name gen.Atom, options Options) (gen.Node, error) {
	if name == "" {
		return nil, gen.ErrIncorrect
	}

	if options.Codec == nil {
		options.Codec = codec.JSON()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	nodectx, nodestop := context.WithCancel(ctx)

	// creation must be > 0, so the zero PID value never belongs to a node
	creation := time.Now().Unix() | 1

	n := &node{
		name:               name,
		creation:           creation,
		ctx:                nodectx,
		stop:               nodestop,
		codec:              options.Codec,
		defaultMailboxSize: options.MailboxSize,
		nextID:             startPID,
		links:              newLinks(),
		env:                make(map[gen.Env]any),
		processes:          make(map[uint64]*process),
	}
	for k, v := range options.Env {
		n.env[k] = v
	}

	n.log = createLog(options.Logger, options.LogLevel, zap.String("node", string(name)))
	n.log.Info("node %s started (creation %d, codec %s)", name, creation, n.codec.Name())
	return n, nil
}

//
// gen.Node implementation
//

func (n *node) Name() gen.Atom {
	return n.name
}

func (n *node) Creation() int64 {
	return n.creation
}

func (n *node) IsAlive() bool {
	return n.ctx.Err() == nil
}

func (n *node) Uptime() int64 {
	return time.Now().Unix() - n.creation
}

func (n *node) Log() gen.Log {
	return n.log
}

func (n *node) Spawn(entry gen.ProcessFunc, options gen.ProcessOptions, args ...any) (gen.PID, error) {
	return n.spawn(nil, entry, options, false, args...)
}

func (n *node) Send(to gen.PID, message any) error {
	return n.send(gen.PID{}, to, gen.Ref{}, gen.MessageTypeRegular, message)
}

func (n *node) SendExit(to gen.PID, reason error) error {
	if reason == nil {
		return gen.ErrIncorrect
	}
	return n.sendExitSignal(gen.PID{}, to, reason)
}

func (n *node) Kill(pid gen.PID) error {
	return n.sendExitSignal(gen.PID{}, pid, gen.TerminateReasonKill)
}

func (n *node) EnvList() map[gen.Env]any {
	n.mutexEnv.RLock()
	defer n.mutexEnv.RUnlock()

	env := make(map[gen.Env]any, len(n.env))
	for k, v := range n.env {
		env[k] = v
	}
	return env
}

func (n *node) Env(name gen.Env) (any, bool) {
	n.mutexEnv.RLock()
	defer n.mutexEnv.RUnlock()

	v, exist := n.env[name]
	return v, exist
}

func (n *node) SetEnv(name gen.Env, value any) {
	n.mutexEnv.Lock()
	defer n.mutexEnv.Unlock()

	if value == nil {
		delete(n.env, name)
		return
	}
	n.env[name] = value
}

func (n *node) Wait() {
	<-n.ctx.Done()
	n.wg.Wait()
}

func (n *node) WaitWithTimeout(d time.Duration) error {
	if d <= 0 {
		n.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		n.Wait()
		close(done)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return gen.ErrTimeout
	}
}

func (n *node) Stop() {
	n.stopped.Do(func() {
		n.log.Info("node %s is stopping", n.name)
		n.stop()

		n.mutexProcesses.RLock()
		procs := make([]*process, 0, len(n.processes))
		for _, p := range n.processes {
			procs = append(procs, p)
		}
		n.mutexProcesses.RUnlock()

		for _, p := range procs {
			p.exit(gen.TerminateReasonKill)
		}
	})
}
