package notify

import (
	"context"
	"sync"

	"kycstatus/internal/kyc/domain"
)

// Broadcaster holds the latest full cache snapshot and wakes every waiter
// when a new one is published. Waiters grab Changed() before inspecting state
// so no publish between the check and the wait is lost.
type Broadcaster struct {
	mu      sync.Mutex
	latest  domain.Snapshot
	version uint64
	changed chan struct{}
}

// New creates a broadcaster whose initial snapshot is empty.
func New() *Broadcaster {
	return &Broadcaster{
		latest:  domain.Snapshot{},
		version: 1,
		changed: make(chan struct{}),
	}
}

// Publish replaces the latest snapshot and wakes all waiters.
// The broadcaster keeps its own copy of snapshot.
func (b *Broadcaster) Publish(snapshot domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = snapshot.Clone()
	b.version++
	close(b.changed)
	b.changed = make(chan struct{})
}

// Changed returns a channel that is closed by the next Publish.
func (b *Broadcaster) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changed
}

// Latest returns a copy of the most recently published snapshot.
func (b *Broadcaster) Latest() domain.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest.Clone()
}

// Lookup returns the summary for id in the latest snapshot.
func (b *Broadcaster) Lookup(id domain.ClientID) (domain.StatusSummary, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	summary, ok := b.latest[id]
	return summary, ok
}

func (b *Broadcaster) current() (domain.Snapshot, uint64, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.version, b.changed
}

// Subscribe streams snapshots until ctx ends. The current snapshot is sent
// first; after that each newer one. A slow reader skips intermediate
// versions but always receives the newest. The channel is closed when ctx ends.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan domain.Snapshot {
	out := make(chan domain.Snapshot, 1)
	go func() {
		defer close(out)
		var seen uint64
		for {
			snapshot, version, changed := b.current()
			if version != seen {
				select {
				case out <- snapshot.Clone():
					seen = version
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
