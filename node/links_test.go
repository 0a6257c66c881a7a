package node

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loom-services/loom/gen"
	"go.uber.org/zap"
)

// watchExit spawns a trapping watcher linked to the given process and
// reports the exit notification it receives. It returns after the link
// is in place.
func watchExit(t *testing.T, n gen.Node, target gen.PID) chan gen.MessageExit {
	t.Helper()
	exits := make(chan gen.MessageExit, 1)
	linked := make(chan error, 1)

	_, err := n.Spawn(func(p gen.Process, _ ...any) error {
		p.SetTrapExit(true)
		if err := p.Link(target); err != nil {
			linked <- err
			return err
		}
		linked <- nil
		for {
			envelope, err := p.Receive(10 * time.Second)
			if err != nil {
				return err
			}
			if exit, ok := gen.IsMessageExit(envelope.Message); ok {
				exits <- exit
				return nil
			}
		}
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-linked:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watcher did not link")
	}
	return exits
}

func TestLinkTrapExitConvertsToMessage(t *testing.T) {
	n := mustStart(t)

	victim, err := n.Spawn(func(p gen.Process, _ ...any) error {
		_, err := p.Receive(10 * time.Second)
		return err
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	exits := watchExit(t, n, victim)

	if err := n.Kill(victim); err != nil {
		t.Fatal(err)
	}

	select {
	case exit := <-exits:
		if exit.PID != victim {
			t.Fatalf("exit names %s, expected %s", exit.PID, victim)
		}
		if exit.Reason != gen.TerminateReasonKill.Error() {
			t.Fatalf("unexpected exit reason %q", exit.Reason)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no exit notification")
	}
}

func TestLinkCascade(t *testing.T) {
	n := mustStart(t)
	boom := errors.New("boom")

	// B blocks, no trap: A's abnormal exit cascades through B
	b, err := n.Spawn(func(p gen.Process, _ ...any) error {
		_, err := p.Receive(10 * time.Second)
		return err
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	exits := watchExit(t, n, b)

	// A links to B and fails
	if _, err := n.Spawn(func(p gen.Process, _ ...any) error {
		if err := p.Link(b); err != nil {
			return nil
		}
		return boom
	}, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case exit := <-exits:
		if exit.PID != b {
			t.Fatalf("exit names %s, expected %s", exit.PID, b)
		}
		// B's own termination is abnormal and references A's failure
		if strings.Contains(exit.Reason, boom.Error()) == false {
			t.Fatalf("cascaded reason %q does not reference the origin", exit.Reason)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cascade did not propagate")
	}
}

func TestLinkNormalExitDoesNotCascade(t *testing.T) {
	n := mustStart(t)
	alive := make(chan error, 1)

	b, err := n.Spawn(func(p gen.Process, _ ...any) error {
		// outlive A's normal exit, then prove we are still responsive
		e, err := p.Receive(10 * time.Second)
		if err != nil {
			alive <- err
			return nil
		}
		alive <- nil
		_ = e
		return nil
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := n.Spawn(func(p gen.Process, _ ...any) error {
		return p.Link(b) // exits normally right after linking
	}, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := n.Send(b, "ping"); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-alive:
		if err != nil {
			t.Fatalf("B was affected by a normal exit: %s", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("B is gone")
	}
}

func TestUnlink(t *testing.T) {
	n := mustStart(t)
	alive := make(chan error, 1)
	boom := errors.New("boom")

	b, err := n.Spawn(func(p gen.Process, _ ...any) error {
		e, err := p.Receive(10 * time.Second)
		if err != nil {
			alive <- err
			return nil
		}
		if e.Message != "still here?" {
			alive <- errors.New("unexpected message")
			return nil
		}
		alive <- nil
		return nil
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := n.Spawn(func(p gen.Process, _ ...any) error {
		if err := p.Link(b); err != nil {
			return nil
		}
		if err := p.Unlink(b); err != nil {
			return nil
		}
		return boom
	}, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := n.Send(b, "still here?"); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-alive:
		if err != nil {
			t.Fatalf("B was affected after unlink: %s", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("B is gone")
	}
}

func TestTrapExitContinuesAfterNotification(t *testing.T) {
	n := mustStart(t)
	done := make(chan error, 1)

	supervisor := func(p gen.Process, _ ...any) error {
		p.SetTrapExit(true)

		child, err := p.SpawnLink(func(cp gen.Process, _ ...any) error {
			_, err := cp.Receive(10 * time.Second)
			return err
		}, gen.ProcessOptions{})
		if err != nil {
			done <- err
			return nil
		}

		if err := p.Kill(child); err != nil {
			done <- err
			return nil
		}

		envelope, err := p.Receive(5 * time.Second)
		if err != nil {
			done <- err
			return nil
		}
		exit, ok := gen.IsMessageExit(envelope.Message)
		if ok == false || exit.PID != child {
			done <- errors.New("expected exit notification for the child")
			return nil
		}

		// the supervisor keeps running: re-spawn and talk to the new child
		again, err := p.SpawnLink(func(cp gen.Process, _ ...any) error {
			e, err := cp.Receive(5 * time.Second)
			if err != nil {
				return err
			}
			return cp.Send(e.From, "pong")
		}, gen.ProcessOptions{})
		if err != nil {
			done <- err
			return nil
		}
		if err := p.Send(again, "ping"); err != nil {
			done <- err
			return nil
		}
		reply, err := p.Receive(5 * time.Second)
		if err != nil {
			done <- err
			return nil
		}
		if reply.Message != "pong" {
			done <- errors.New("unexpected reply")
			return nil
		}
		done <- nil
		return nil
	}

	if _, err := n.Spawn(supervisor, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
}

func TestSpawnLinkAtomicity(t *testing.T) {
	n := mustStart(t)
	done := make(chan error, 1)

	// a child failing instantly must still be observed: the link exists
	// before its first instruction
	if _, err := n.Spawn(func(p gen.Process, _ ...any) error {
		p.SetTrapExit(true)
		child, err := p.SpawnLink(func(gen.Process, ...any) error {
			return errors.New("instant failure")
		}, gen.ProcessOptions{})
		if err != nil {
			done <- err
			return nil
		}
		envelope, err := p.Receive(5 * time.Second)
		if err != nil {
			done <- err
			return nil
		}
		exit, ok := gen.IsMessageExit(envelope.Message)
		if ok == false || exit.PID != child {
			done <- errors.New("missed the child exit")
			return nil
		}
		done <- nil
		return nil
	}, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
}

func TestPanicContainedWithDevelopmentLogger(t *testing.T) {
	// a development zap logger panics on DPanic-level writes; a panicking
	// process must still terminate cleanly and notify its peers instead of
	// re-panicking out of the runner's recovery path
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatal(err)
	}
	n, err := Start("test@localhost", Options{Logger: logger, LogLevel: gen.LogLevelPanic})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(n.Stop)

	done := make(chan error, 1)

	if _, err := n.Spawn(func(p gen.Process, _ ...any) error {
		p.SetTrapExit(true)
		child, err := p.SpawnLink(func(gen.Process, ...any) error {
			panic("boom")
		}, gen.ProcessOptions{})
		if err != nil {
			done <- err
			return nil
		}
		envelope, err := p.Receive(5 * time.Second)
		if err != nil {
			done <- err
			return nil
		}
		exit, ok := gen.IsMessageExit(envelope.Message)
		if ok == false || exit.PID != child {
			done <- errors.New("expected the child exit notification")
			return nil
		}
		if strings.Contains(exit.Reason, "boom") == false {
			done <- errors.New("exit reason lost the panic value: " + exit.Reason)
			return nil
		}
		done <- nil
		return nil
	}, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
}

func TestLinkToTerminatingProcess(t *testing.T) {
	n := mustStart(t)
	nd := n.(*node)
	done := make(chan error, 1)

	target, err := n.Spawn(func(p gen.Process, _ ...any) error {
		_, err := p.Receive(time.Hour)
		return err
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	tp, err := nd.lookup(target)
	if err != nil {
		t.Fatal(err)
	}

	// a terminating target may already have snapshotted its links for the
	// exit fan-out even though it is still in the registry; a link placed
	// now would never be evaluated and must be refused
	atomic.StoreInt32(&tp.state, procStateTerminating)

	pid, err := n.Spawn(func(p gen.Process, _ ...any) error {
		if err := p.Link(target); errors.Is(err, gen.ErrProcessUnknown) == false {
			done <- errors.New("expected ErrProcessUnknown for a terminating target")
			return nil
		}
		if len(p.Links()) != 0 {
			done <- errors.New("refused link left entries in the link table")
			return nil
		}
		done <- nil
		return nil
	}, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}

	if peers := nd.links.linked(target); len(peers) != 0 {
		t.Fatalf("dead-end link survived for %s: %v", pid, peers)
	}
}

func TestLinkToTerminated(t *testing.T) {
	n := mustStart(t)
	nd := n.(*node)
	done := make(chan error, 1)

	pid, err := n.Spawn(func(gen.Process, ...any) error { return nil }, gen.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := nd.lookup(pid); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("process did not terminate")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := n.Spawn(func(p gen.Process, _ ...any) error {
		if err := p.Link(pid); errors.Is(err, gen.ErrProcessUnknown) == false {
			done <- errors.New("expected ErrProcessUnknown")
			return nil
		}
		done <- nil
		return nil
	}, gen.ProcessOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
}
