package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/loom-services/loom/gen"
	"github.com/loom-services/loom/lib"
	"go.uber.org/zap"
)

// Process registry and message routing. Registry entries are created on
// spawn and removed only after all link deliveries for the termination
// have completed.

func (n *node) newPID() gen.PID {
	return gen.PID{
		Node:     n.name,
		ID:       atomic.AddUint64(&n.nextID, 1),
		Creation: n.creation,
	}
}

func (n *node) makeRef() gen.Ref {
	return gen.Ref{
		Node:     n.name,
		Creation: n.creation,
		ID:       atomic.AddUint64(&n.uniqID, 1),
	}
}

// lookup resolves a PID to a live process. A PID from a previous node
// incarnation fails with ErrProcessIncarnation so a stale handle can
// never reach a newer process occupying the same numeric slot.
func (n *node) lookup(pid gen.PID) (*process, error) {
	if pid.IsZero() {
		return nil, gen.ErrProcessUnknown
	}
	if pid.Node != n.name {
		return nil, gen.ErrProcessUnknown
	}
	if pid.Creation != n.creation {
		return nil, gen.ErrProcessIncarnation
	}

	n.mutexProcesses.RLock()
	p := n.processes[pid.ID]
	n.mutexProcesses.RUnlock()

	if p == nil {
		return nil, gen.ErrProcessUnknown
	}
	return p, nil
}

func (n *node) spawn(parent *process, entry gen.ProcessFunc, options gen.ProcessOptions, link bool, args ...any) (gen.PID, error) {
	if entry == nil {
		return gen.PID{}, gen.ErrSpawnEntry
	}

	pid := n.newPID()
	ctx, cancel := context.WithCancel(n.ctx)

	size := options.MailboxSize
	if size == 0 {
		size = n.defaultMailboxSize
	}
	var mailbox lib.QueueMPSC
	if size > 0 {
		mailbox = lib.NewQueueLimitMPSC(size)
	} else {
		mailbox = lib.NewQueueMPSC()
	}

	p := &process{
		node:     n,
		pid:      pid,
		creation: time.Now().Unix(),
		entry:    entry,
		args:     args,
		mailbox:  mailbox,
		signal:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		state:    procStateRunning,
	}
	p.log = createLog(n.log.logger, n.log.Level(), zap.Stringer("pid", pid))

	// environment inheritance: node, then parent, then spawn options
	for k, v := range n.EnvList() {
		p.env.Store(k, v)
	}
	if parent != nil {
		p.parent = parent.pid
		for k, v := range parent.EnvList() {
			p.env.Store(k, v)
		}
	}
	for k, v := range options.Env {
		if v == nil {
			p.env.Delete(k)
			continue
		}
		p.env.Store(k, v)
	}

	n.mutexProcesses.Lock()
	if n.ctx.Err() != nil {
		n.mutexProcesses.Unlock()
		cancel()
		return gen.PID{}, gen.ErrNodeTerminated
	}
	n.processes[pid.ID] = p
	// the waitgroup entry must exist before anyone can observe the
	// registration, or a concurrent Stop+Wait could pass Wait while this
	// process is still starting up
	n.wg.Add(1)
	n.mutexProcesses.Unlock()

	if link && parent != nil {
		// the link is in place before the first instruction of the child,
		// so there is no failure window between spawn and link
		n.links.link(parent.pid, pid)
	}

	go p.run()

	p.log.Debug("process spawned (parent %s)", p.parent)
	return pid, nil
}

// send encodes the message and routes the envelope to the target mailbox.
func (n *node) send(from, to gen.PID, ref gen.Ref, mtype gen.MessageType, message any) error {
	id, data, err := n.codec.Encode(message)
	if err != nil {
		return err
	}

	e := gen.TakeEnvelope()
	e.From = from
	e.Ref = ref
	e.Type = mtype
	e.TypeID = id
	e.Data = data
	return n.route(to, e)
}

// route delivers the envelope. Sending to a process that has already
// terminated is a silent drop: reliability is obtained via links, not via
// the send return value.
func (n *node) route(to gen.PID, e *gen.Envelope) error {
	p, err := n.lookup(to)
	if err != nil {
		gen.ReleaseEnvelope(e)
		if errors.Is(err, gen.ErrProcessIncarnation) {
			return err
		}
		return nil
	}
	return p.enqueue(e)
}

// sendExitSignal delivers an exit signal to the target process, honoring
// the target's trap_exit policy at the moment of delivery. The kill
// reason cannot be trapped.
func (n *node) sendExitSignal(from, to gen.PID, reason error) error {
	p, err := n.lookup(to)
	if err != nil {
		return err
	}

	if errors.Is(reason, gen.TerminateReasonKill) {
		p.exit(reason)
		return nil
	}
	if p.TrapExit() {
		n.deliverExit(p, from, reason)
		return nil
	}
	if errors.Is(reason, gen.TerminateReasonNormal) {
		// normal exit signals are ignored by a non-trapping target
		return nil
	}
	p.exit(reason)
	return nil
}

// deliverExit synthesizes an exit-notification envelope. It goes through
// the ordinary mailbox, subject to selective receive like any other
// message, and carries the value pre-decoded: it never crossed the
// serializer boundary.
func (n *node) deliverExit(p *process, from gen.PID, reason error) {
	e := gen.TakeEnvelope()
	e.From = from
	e.Type = gen.MessageTypeExit
	e.Message = gen.MessageExit{PID: from, Reason: reason.Error()}
	if err := p.enqueue(e); err != nil {
		p.log.Error("unable to deliver exit message from %s: %s", from, err)
	}
}

// terminate runs on the goroutine of the dying process. Exit signals are
// delivered to every former peer first, each link evaluated independently
// against that peer's trap_exit setting; only then is the registry entry
// removed.
func (n *node) terminate(p *process, reason error) {
	atomic.StoreInt32(&p.state, procStateTerminating)

	peers := n.links.terminated(p.pid)
	for _, peer := range peers {
		pp, err := n.lookup(peer)
		if err != nil {
			continue
		}
		if pp.TrapExit() {
			n.deliverExit(pp, p.pid, reason)
			continue
		}
		if errors.Is(reason, gen.TerminateReasonNormal) {
			continue
		}
		pp.exit(fmt.Errorf("linked process %s terminated: %w", p.pid, reason))
	}

	n.mutexProcesses.Lock()
	delete(n.processes, p.pid.ID)
	n.mutexProcesses.Unlock()

	// drain whatever was left behind in the mailbox
	for item := p.mailbox.Item(); item != nil; item = item.Next() {
		if e, ok := item.Take(); ok {
			gen.ReleaseEnvelope(e)
		}
	}

	atomic.StoreInt32(&p.state, procStateTerminated)
	p.cancel()
	p.log.Debug("process terminated: %s", reason)
	n.wg.Done()
}
