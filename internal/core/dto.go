package core

import "github.com/Meloken/voicehub/internal/domain"

// MemberDTO is a read-only membership view for fan-out (no transport fields).
type MemberDTO struct {
	Handle domain.ConnID `json:"id"`
	Name   string        `json:"name"`
}

// ChannelMemberDTO is a room member annotated with live audio flags.
type ChannelMemberDTO struct {
	Handle       domain.ConnID `json:"id"`
	Name         string        `json:"name"`
	MicEnabled   bool          `json:"mic_enabled"`
	SelfDeafened bool          `json:"self_deafened"`
}

// ChannelDTO is one room's slice of the group-wide channel snapshot.
type ChannelDTO struct {
	Name    string             `json:"name"`
	Kind    domain.RoomKind    `json:"kind"`
	Members []ChannelMemberDTO `json:"members"`
}

type RoomInfo struct {
	ID   domain.RoomID   `json:"id"`
	Name string          `json:"name"`
	Kind domain.RoomKind `json:"kind"`
}

type GroupInfo struct {
	ID    domain.GroupID `json:"id"`
	Name  string         `json:"name"`
	Owner string         `json:"owner"`
}

// Presence splits a group's durable member identities by live status.
type Presence struct {
	Online  []string `json:"online"`
	Offline []string `json:"offline"`
}
