// Package unit runs test functions inside spawned processes. Running a
// test is equivalent to spawning its body linked to a trapping watcher
// process and waiting for the exit notification: any abnormal termination
// of the body (returned error, panic, kill) surfaces as a test failure.
package unit

import (
	"errors"
	"testing"
	"time"

	"github.com/loom-services/loom/gen"
	"github.com/loom-services/loom/node"
)

const (
	watchTimeout = time.Minute
)

// Run executes entry as a process on a private node and fails the test if
// the process terminates abnormally.
func Run(t testing.TB, entry gen.ProcessFunc, args ...any) {
	t.Helper()

	n, err := node.Start("unit@localhost", node.Options{})
	if err != nil {
		t.Fatalf("unable to start node: %s", err)
	}
	defer n.Stop()

	RunWithNode(t, n, entry, args...)
}

// RunWithNode is Run on a caller-provided node, for tests that need
// custom node options or several test processes on one node.
func RunWithNode(t testing.TB, n gen.Node, entry gen.ProcessFunc, args ...any) {
	t.Helper()

	if reason := runWatched(n, entry, args...); reason != nil {
		t.Fatalf("process terminated abnormally: %s", reason)
	}
}

func runWatched(n gen.Node, entry gen.ProcessFunc, args ...any) error {
	result := make(chan error, 1)

	watcher := func(p gen.Process, _ ...any) error {
		p.SetTrapExit(true)

		pid, err := p.SpawnLink(entry, gen.ProcessOptions{}, args...)
		if err != nil {
			result <- err
			return err
		}

		for {
			envelope, err := p.Receive(watchTimeout)
			if err != nil {
				result <- err
				return nil
			}
			exit, ok := gen.IsMessageExit(envelope.Message)
			if ok == false || exit.PID != pid {
				// unrelated traffic
				continue
			}
			if exit.Reason == gen.TerminateReasonNormal.Error() {
				result <- nil
				return nil
			}
			result <- errors.New(exit.Reason)
			return nil
		}
	}

	if _, err := n.Spawn(watcher, gen.ProcessOptions{}); err != nil {
		return err
	}

	select {
	case reason := <-result:
		return reason
	case <-time.After(watchTimeout + time.Second):
		return gen.ErrTimeout
	}
}
