package node

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loom-services/loom/gen"
	"github.com/loom-services/loom/lib"
)

type process struct {
	node *node
	pid  gen.PID

	parent gen.PID

	// used for the process Uptime method only. PID value uses node
	// creation value.
	creation int64

	entry gen.ProcessFunc
	args  []any

	mailbox lib.QueueMPSC
	// signal wakes the owner up on delivery. Capacity 1: collapsed
	// signals are fine, the receive loop rescans the whole mailbox.
	signal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	state    int32
	trapExit atomic.Bool

	exited     sync.Once
	exitReason error

	env sync.Map

	log gen.Log

	messagesIn  uint64
	messagesOut uint64
}

// run executes the entry function and owns the termination of the
// process: normal return, returned error, panic, or an exit signal
// observed at a suspension point (which unwinds as a processKill value).
func (p *process) run() {
	reason := gen.TerminateReasonNormal
	defer func() {
		if r := recover(); r != nil {
			if k, ok := r.(processKill); ok {
				reason = k.reason
			} else {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				p.log.Panic("process %s terminated abnormally: %v\n%s", p.pid, r, buf[:n])
				reason = fmt.Errorf("%w: %v", gen.TerminateReasonPanic, r)
			}
		}
		p.node.terminate(p, reason)
	}()

	if err := p.entry(p, p.args...); err != nil {
		reason = err
	}
}

// exit signals the process to terminate. The first signal wins; the
// process observes it at its next suspension point.
func (p *process) exit(reason error) {
	p.exited.Do(func() {
		p.exitReason = reason
		atomic.CompareAndSwapInt32(&p.state, procStateRunning, procStateTerminating)
		p.cancel()
	})
}

// enqueue delivers an envelope into the mailbox and wakes the owner.
func (p *process) enqueue(e *gen.Envelope) error {
	if p.mailbox.Push(e) == false {
		gen.ReleaseEnvelope(e)
		return gen.ErrProcessMailboxFull
	}
	select {
	case p.signal <- struct{}{}:
	default:
	}
	return nil
}

// killed returns the reason the process was signaled to stop with.
func (p *process) killed() processKill {
	reason := p.exitReason
	if reason == nil {
		// node shutdown cancels the context without going through exit
		reason = gen.TerminateReasonKill
	}
	return processKill{reason: reason}
}

// receive implements selective receive: the first envelope matching the
// filter is taken out of the mailbox, entries ahead of it stay in place
// and keep their order. Decoding is deferred to this point; a decode
// failure is returned to the caller with the envelope already consumed.
func (p *process) receive(timeout time.Duration, match func(*gen.Envelope) bool) (gen.Envelope, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	for {
		if atomic.LoadInt32(&p.state) != procStateRunning {
			panic(p.killed())
		}

		for item := p.mailbox.Item(); item != nil; item = item.Next() {
			e := item.Value()
			if e == nil {
				// taken by an earlier selective receive
				continue
			}
			if match != nil && match(e) == false {
				continue
			}
			if _, ok := item.Take(); ok == false {
				continue
			}

			env := *e
			gen.ReleaseEnvelope(e)
			atomic.AddUint64(&p.messagesIn, 1)

			if env.Message == nil && env.TypeID != "" {
				message, err := p.node.codec.Decode(env.TypeID, env.Data)
				if err != nil {
					return env, err
				}
				env.Message = message
				env.Data = nil
			}
			return env, nil
		}

		select {
		case <-p.signal:
		case <-timeoutC:
			return gen.Envelope{}, gen.ErrTimeout
		case <-p.ctx.Done():
			panic(p.killed())
		}
	}
}

func (p *process) send(to gen.PID, ref gen.Ref, mtype gen.MessageType, message any) error {
	if err := p.node.send(p.pid, to, ref, mtype, message); err != nil {
		return err
	}
	atomic.AddUint64(&p.messagesOut, 1)
	return nil
}

//
// gen.Process implementation
//

func (p *process) Node() gen.Node {
	return p.node
}

func (p *process) PID() gen.PID {
	return p.pid
}

func (p *process) Parent() gen.PID {
	return p.parent
}

func (p *process) Uptime() int64 {
	return time.Now().Unix() - p.creation
}

func (p *process) IsAlive() bool {
	return atomic.LoadInt32(&p.state) == procStateRunning
}

func (p *process) Log() gen.Log {
	return p.log
}

func (p *process) EnvList() map[gen.Env]any {
	env := make(map[gen.Env]any)
	p.env.Range(func(k, v any) bool {
		env[k.(gen.Env)] = v
		return true
	})
	return env
}

func (p *process) Env(name gen.Env) (any, bool) {
	return p.env.Load(name)
}

func (p *process) SetEnv(name gen.Env, value any) {
	if value == nil {
		p.env.Delete(name)
		return
	}
	p.env.Store(name, value)
}

func (p *process) Spawn(entry gen.ProcessFunc, options gen.ProcessOptions, args ...any) (gen.PID, error) {
	return p.node.spawn(p, entry, options, false, args...)
}

func (p *process) SpawnLink(entry gen.ProcessFunc, options gen.ProcessOptions, args ...any) (gen.PID, error) {
	return p.node.spawn(p, entry, options, true, args...)
}

func (p *process) Send(to gen.PID, message any) error {
	return p.send(to, gen.Ref{}, gen.MessageTypeRegular, message)
}

func (p *process) SendTagged(to gen.PID, tag gen.Ref, message any) error {
	return p.send(to, tag, gen.MessageTypeRegular, message)
}

func (p *process) SendResponse(to gen.PID, tag gen.Ref, message any) error {
	return p.send(to, tag, gen.MessageTypeResponse, message)
}

func (p *process) SendAfter(to gen.PID, message any, after time.Duration) (gen.CancelFunc, error) {
	// encoding happens now so a malformed payload fails synchronously
	id, data, err := p.node.codec.Encode(message)
	if err != nil {
		return nil, err
	}

	e := gen.TakeEnvelope()
	e.From = p.pid
	e.Type = gen.MessageTypeRegular
	e.TypeID = id
	e.Data = data

	timer := time.AfterFunc(after, func() {
		atomic.AddUint64(&p.messagesOut, 1)
		p.node.route(to, e)
	})
	cancel := func() bool {
		if timer.Stop() {
			gen.ReleaseEnvelope(e)
			return true
		}
		return false
	}
	return cancel, nil
}

func (p *process) SendExit(to gen.PID, reason error) error {
	if reason == nil {
		return gen.ErrIncorrect
	}
	return p.node.sendExitSignal(p.pid, to, reason)
}

func (p *process) Receive(timeout time.Duration) (gen.Envelope, error) {
	return p.receive(timeout, nil)
}

func (p *process) ReceiveTagged(timeout time.Duration, tags ...gen.Ref) (gen.Envelope, error) {
	if len(tags) == 0 {
		return gen.Envelope{}, gen.ErrIncorrect
	}
	return p.receive(timeout, func(e *gen.Envelope) bool {
		for i := range tags {
			if e.Ref == tags[i] {
				return true
			}
		}
		return false
	})
}

func (p *process) Call(to gen.PID, request any) (any, error) {
	return p.CallWithTimeout(to, request, gen.DefaultRequestTimeout)
}

func (p *process) CallWithTimeout(to gen.PID, request any, timeout time.Duration) (any, error) {
	ref := p.MakeRef()
	if err := p.send(to, ref, gen.MessageTypeRequest, request); err != nil {
		return nil, err
	}

	env, err := p.receive(timeout, func(e *gen.Envelope) bool {
		return e.Ref == ref
	})
	if err != nil {
		return nil, err
	}
	return env.Message, nil
}

func (p *process) Link(target gen.PID) error {
	if target == p.pid {
		return nil
	}
	if _, err := p.node.lookup(target); err != nil {
		return err
	}

	p.node.links.link(p.pid, target)

	// the target may have started terminating between the liveness check
	// and the link registration. Its exit fan-out snapshots the link table
	// before the registry entry goes away, so presence in the registry is
	// not enough: a target past procStateRunning may have snapshotted
	// already and this link would never be evaluated.
	tp, err := p.node.lookup(target)
	if err != nil {
		p.node.links.unlink(p.pid, target)
		return err
	}
	if atomic.LoadInt32(&tp.state) != procStateRunning {
		p.node.links.unlink(p.pid, target)
		return gen.ErrProcessUnknown
	}
	return nil
}

func (p *process) Unlink(target gen.PID) error {
	p.node.links.unlink(p.pid, target)
	return nil
}

func (p *process) Links() []gen.PID {
	return p.node.links.linked(p.pid)
}

func (p *process) SetTrapExit(trap bool) {
	p.trapExit.Store(trap)
}

func (p *process) TrapExit() bool {
	return p.trapExit.Load()
}

func (p *process) Kill(target gen.PID) error {
	return p.node.sendExitSignal(p.pid, target, gen.TerminateReasonKill)
}

func (p *process) MakeRef() gen.Ref {
	return p.node.makeRef()
}
