package node

import (
	"sync"

	"github.com/loom-services/loom/gen"
)

// Pairwise link bookkeeping. Links are bidirectional and there can be only
// one link between two processes; repeated link calls have no effect.
// The table is the only state shared between processes besides mailbox
// delivery, and it is touched exclusively through these methods.

type links struct {
	sync.Mutex
	links map[gen.PID][]gen.PID
}

func newLinks() *links {
	return &links{
		links: make(map[gen.PID][]gen.PID),
	}
}

func (l *links) link(pidA, pidB gen.PID) {
	if pidA == pidB {
		return
	}

	l.Lock()
	defer l.Unlock()

	linksA := l.links[pidA]
	for i := range linksA {
		if linksA[i] == pidB {
			// already linked
			return
		}
	}
	l.links[pidA] = append(linksA, pidB)
	l.links[pidB] = append(l.links[pidB], pidA)
}

func (l *links) unlink(pidA, pidB gen.PID) {
	l.Lock()
	defer l.Unlock()

	l.remove(pidA, pidB)
	l.remove(pidB, pidA)
}

// remove must be called with the mutex held.
func (l *links) remove(from, pid gen.PID) {
	items := l.links[from]
	for i := range items {
		if items[i] != pid {
			continue
		}
		items[i] = items[len(items)-1]
		items = items[:len(items)-1]
		break
	}
	if len(items) == 0 {
		delete(l.links, from)
		return
	}
	l.links[from] = items
}

func (l *links) linked(pid gen.PID) []gen.PID {
	l.Lock()
	defer l.Unlock()

	items := l.links[pid]
	if len(items) == 0 {
		return nil
	}
	return append([]gen.PID(nil), items...)
}

// terminated removes every link of the given process and returns its
// former peers. Removal happens before any exit signal is delivered, so
// delivery is at most once per pair per termination event.
func (l *links) terminated(pid gen.PID) []gen.PID {
	l.Lock()
	defer l.Unlock()

	peers := l.links[pid]
	if len(peers) == 0 {
		return nil
	}
	delete(l.links, pid)
	for i := range peers {
		l.remove(peers[i], pid)
	}
	return peers
}
