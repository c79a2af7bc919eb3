package analytics

import (
	"context"
	"fmt"
	"sync"

	"github.com/invoicely/invoicely/internal/platform/httpx"
)

// ErrStaleRequest marks a result overtaken by a newer request from the same session.
var ErrStaleRequest = fmt.Errorf("analytics: stale request: %w", httpx.ErrSuperseded)

// Sequencer orders analytics requests per client session. Starting a request
// cancels the one still in flight for the same session, and only the latest
// request may deliver its result.
type Sequencer struct {
	mu       sync.Mutex
	next     uint64
	sessions map[string]*inflight
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewSequencer returns an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{sessions: make(map[string]*inflight)}
}

// Ticket identifies one sequenced request.
type Ticket struct {
	seq     *Sequencer
	session string
	number  uint64
	cancel  context.CancelFunc
}

// Begin registers a request for session and returns the context the
// computation must run under. An empty session is not sequenced.
func (s *Sequencer) Begin(ctx context.Context, session string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancel(ctx)
	if s == nil || session == "" {
		return ctx, &Ticket{cancel: cancel}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session]
	if !ok {
		current = &inflight{}
		s.sessions[session] = current
	}
	if current.cancel != nil {
		current.cancel()
	}
	s.next++
	current.seq = s.next
	current.cancel = cancel
	return ctx, &Ticket{seq: s, session: session, number: current.seq, cancel: cancel}
}

// Seq returns the ticket's sequence number. Numbers only grow, across sessions too.
func (t *Ticket) Seq() uint64 {
	return t.number
}

// Finish releases the ticket. It returns ErrStaleRequest when a newer request
// for the session has started since, and err otherwise.
func (t *Ticket) Finish(err error) error {
	defer t.cancel()
	if t.seq == nil {
		return err
	}

	t.seq.mu.Lock()
	defer t.seq.mu.Unlock()
	current, ok := t.seq.sessions[t.session]
	if !ok || current.seq != t.number {
		return ErrStaleRequest
	}
	delete(t.seq.sessions, t.session)
	return err
}
