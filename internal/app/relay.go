package app

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

type admission int

const (
	admitted admission = iota
	deferred
	rejected
)

type pendingSignal struct {
	from    domain.ConnID
	to      domain.ConnID
	payload json.RawMessage
	timer   *time.Timer
}

// Relay routes opaque negotiation payloads between two connections that
// are co-members of the same group and room. The payload is never
// parsed, stored or modified; delivery wraps it with the sender handle
// and nothing else.
//
// Peers discover each other concurrently with their own room
// transitions, so a strict same-instant check would drop a large share
// of legitimate early traffic. When only the group matches, the message
// is deferred once for the retry window and co-membership is re-read
// against live state at that later instant. One retry, not a queue:
// anything still mismatched afterwards is stale and dropped.
type Relay struct {
	seq   *sync.Mutex // the hub mutex: admission runs on the sequencer timeline
	reg   *Registry
	retry time.Duration

	mu      sync.Mutex
	pending map[domain.ConnID][]*pendingSignal
}

func newRelay(seq *sync.Mutex, reg *Registry, retry time.Duration) *Relay {
	return &Relay{
		seq:     seq,
		reg:     reg,
		retry:   retry,
		pending: make(map[domain.ConnID][]*pendingSignal),
	}
}

// Send relays payload from one connection to another. Failures are
// silent from the sender's perspective: spurious or late negotiation
// traffic is expected and not actionable.
func (r *Relay) Send(from, to domain.ConnID, payload json.RawMessage) {
	if from == to {
		return
	}
	r.seq.Lock()
	verdict := r.admit(from, to)
	if verdict == admitted {
		r.deliver(from, to, payload)
	}
	r.seq.Unlock()

	switch verdict {
	case deferred:
		r.deferOnce(from, to, payload)
	case rejected:
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Msg("dropped signal, no co-membership")
	}
}

// DiscardFor drops every pending message addressed to the handle. Runs
// as the first step of disconnect cleanup so nothing is delivered to a
// connection being torn down.
func (r *Relay) DiscardFor(to domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending[to] {
		p.timer.Stop()
	}
	delete(r.pending, to)
}

func (r *Relay) admit(from, to domain.ConnID) admission {
	src, ok := r.reg.Get(from)
	if !ok {
		return rejected
	}
	tgt, ok := r.reg.Get(to)
	if !ok {
		return rejected
	}
	sameGroup := src.CurrentGroup != "" && src.CurrentGroup == tgt.CurrentGroup
	if sameGroup && src.CurrentRoom != "" && src.CurrentRoom == tgt.CurrentRoom {
		return admitted
	}
	if sameGroup {
		return deferred
	}
	return rejected
}

func (r *Relay) deliver(from, to domain.ConnID, payload json.RawMessage) {
	sig, ok := r.reg.Signal(to)
	if !ok {
		return
	}
	b, err := json.Marshal(struct {
		Type    string          `json:"type"`
		From    domain.ConnID   `json:"from"`
		Payload json.RawMessage `json:"payload"`
	}{"signal", from, payload})
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal signal")
		return
	}
	if err := sig.TrySend(core.Frame(b)); err != nil {
		log.Debug().Str("module", "app.relay").Str("to", string(to)).Msg("signal dropped by transport")
	}
}

func (r *Relay) deferOnce(from, to domain.ConnID, payload json.RawMessage) {
	p := &pendingSignal{from: from, to: to, payload: payload}
	// The timer is armed and the entry published under the same lock
	// DiscardFor takes, so a concurrent discard always sees a live timer.
	r.mu.Lock()
	p.timer = time.AfterFunc(r.retry, func() { r.retryPending(p) })
	r.pending[to] = append(r.pending[to], p)
	r.mu.Unlock()
}

// retryPending re-evaluates co-membership against live registry state at
// the retry instant, not state captured at enqueue time.
func (r *Relay) retryPending(p *pendingSignal) {
	if !r.takePending(p) {
		return // discarded in the meantime
	}
	r.seq.Lock()
	defer r.seq.Unlock()
	if r.admit(p.from, p.to) == admitted {
		r.deliver(p.from, p.to, p.payload)
		return
	}
	log.Debug().Str("module", "app.relay").Str("from", string(p.from)).Str("to", string(p.to)).Msg("dropped signal after retry window")
}

func (r *Relay) takePending(p *pendingSignal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.pending[p.to]
	for i, q := range list {
		if q == p {
			r.pending[p.to] = append(list[:i], list[i+1:]...)
			if len(r.pending[p.to]) == 0 {
				delete(r.pending, p.to)
			}
			return true
		}
	}
	return false
}
