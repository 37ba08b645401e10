package procmon

import (
	"sync"

	"github.com/gitxandert/process-monitor/types"
)

// transitionSubscriber is a helper for managing transition subscriptions.
type transitionSubscriber struct {
	ch     chan types.Transition
	mu     sync.Mutex
	closed bool
}

// trySend delivers a transition to the subscriber's channel without blocking.
func (s *transitionSubscriber) trySend(tr types.Transition, metricsCollector types.MetricsCollector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- tr:
	default:
		// Subscriber is slow or not ready; they will get the next event.
		metricsCollector.RecordTransitionDropped()
	}
}

// close safely closes the subscriber's channel.
func (s *transitionSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
