package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

type connEntry struct {
	conn   *domain.Connection
	signal core.SignalConnection
}

// Registry owns the ephemeral per-connection records. Every method is
// atomic relative to concurrent reads; callers never observe a
// half-updated record.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.ConnID]*connEntry
	byName  map[string]domain.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.ConnID]*connEntry),
		byName:  make(map[string]domain.ConnID),
	}
}

func (r *Registry) Register(id domain.ConnID, sig core.SignalConnection) *domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := domain.NewConnection(id)
	r.entries[id] = &connEntry{conn: c, signal: sig}
	log.Info().Str("module", "app.registry").Str("cid", string(id)).Msg("registered connection")
	return c
}

// Get returns a copy of the record; mutation goes through the setters.
func (r *Registry) Get(id domain.ConnID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Connection{}, false
	}
	return *e.conn, true
}

func (r *Registry) Signal(id domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.signal == nil {
		return nil, false
	}
	return e.signal, true
}

// SetIdentity claims a display name for a live connection. The name must
// be unique among live connections; durable accounts are not consulted.
func (r *Registry) SetIdentity(id domain.ConnID, name string) error {
	if err := domain.ValidDisplayName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.ErrUnknownConnection
	}
	if holder, taken := r.byName[name]; taken && holder != id {
		return domain.ErrDuplicateIdentity
	}
	if e.conn.Name != "" {
		delete(r.byName, e.conn.Name)
	}
	e.conn.Name = name
	r.byName[name] = id
	log.Info().Str("module", "app.registry").Str("cid", string(id)).Str("name", name).Msg("identity set")
	return nil
}

func (r *Registry) SetAudio(id domain.ConnID, mic, deaf bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.conn.MicEnabled = mic
	e.conn.SelfDeafened = deaf
	return true
}

func (r *Registry) SetLocation(id domain.ConnID, group domain.GroupID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.conn.CurrentGroup = group
	e.conn.CurrentRoom = room
	return true
}

func (r *Registry) ClearRoom(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.conn.CurrentRoom = ""
	}
}

// Online reports whether any live connection holds the display name.
func (r *Registry) Online(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) Unregister(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && e.conn.Name != "" {
		delete(r.byName, e.conn.Name)
	}
	delete(r.entries, id)
	log.Info().Str("module", "app.registry").Str("cid", string(id)).Msg("unregistered connection")
}
