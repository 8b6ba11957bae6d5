package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Meloken/voicehub/internal/domain"
)

// Text persists a message in a text room the sender currently occupies
// and fans it out to the room. Voice rooms reject text traffic.
func (h *Hub) Text(ctx context.Context, id domain.ConnID, group domain.GroupID, room domain.RoomID, content string) error {
	h.mu.Lock()
	conn, ok := h.reg.Get(id)
	if !ok {
		h.mu.Unlock()
		return domain.ErrUnknownConnection
	}
	if conn.Name == "" {
		h.mu.Unlock()
		return domain.ErrNoIdentity
	}
	r, ok := h.dir.Room(group, room)
	if !ok {
		h.mu.Unlock()
		return domain.ErrUnknownRoom
	}
	if r.Kind != domain.RoomText {
		h.mu.Unlock()
		return domain.ErrNotTextRoom
	}
	if conn.CurrentGroup != group || conn.CurrentRoom != room {
		h.mu.Unlock()
		return domain.ErrNotAMember
	}
	h.mu.Unlock()

	if !h.limiter.Allow(id) {
		return ErrRateLimited
	}

	m := domain.StoredMessage{
		Room:      room,
		Author:    conn.Name,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := h.bridge.AppendMessage(ctx, m); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	h.mu.Lock()
	h.fan.Text(group, room, m)
	h.mu.Unlock()
	return nil
}

// History returns the most recent messages of a text room in
// chronological order. Voice rooms have no backlog.
func (h *Hub) History(ctx context.Context, group domain.GroupID, room domain.RoomID) ([]domain.StoredMessage, error) {
	h.mu.Lock()
	r, ok := h.dir.Room(group, room)
	h.mu.Unlock()
	if !ok {
		return nil, domain.ErrUnknownRoom
	}
	if r.Kind != domain.RoomText {
		return nil, domain.ErrNotTextRoom
	}
	msgs, err := h.bridge.RecentMessages(ctx, room, h.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return msgs, nil
}
