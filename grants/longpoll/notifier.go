// Package longpoll lets token endpoint polls park until a pending
// authentication request changes state, instead of returning
// authorization_pending immediately.
package longpoll

import (
	"context"
	"sync"
	"time"
)

// Notifier fans status-change signals out to waiting polls, keyed by
// request id. A Notify wakes every waiter registered for that id; waiters
// that time out or are cancelled simply re-evaluate the stored record.
type Notifier struct {
	mu      sync.Mutex
	waiters map[string][]chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{waiters: make(map[string][]chan struct{})}
}

// WaitForStatusChange blocks until the request is notified, the timeout
// lapses or the context is cancelled. It returns true only when a
// notification arrived; the caller must still re-read the record, since the
// state may have changed again since the signal.
func (n *Notifier) WaitForStatusChange(ctx context.Context, requestID string, timeout time.Duration) bool {
	signal := make(chan struct{}, 1)

	n.mu.Lock()
	n.waiters[requestID] = append(n.waiters[requestID], signal)
	n.mu.Unlock()

	defer n.remove(requestID, signal)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-signal:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Notify wakes every poll waiting on the request.
func (n *Notifier) Notify(requestID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, signal := range n.waiters[requestID] {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
	delete(n.waiters, requestID)
}

func (n *Notifier) remove(requestID string, signal chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	remaining := n.waiters[requestID][:0]
	for _, w := range n.waiters[requestID] {
		if w != signal {
			remaining = append(remaining, w)
		}
	}
	if len(remaining) == 0 {
		delete(n.waiters, requestID)
	} else {
		n.waiters[requestID] = remaining
	}
}
