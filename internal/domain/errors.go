package domain

import "errors"

// Rejection reasons surfaced to the originating connection. None of
// these is fatal to the process.
var (
	ErrUnknownGroup      = errors.New("unknown group")
	ErrUnknownRoom       = errors.New("unknown room")
	ErrDuplicateIdentity = errors.New("display name already in use")
	ErrNotAMember        = errors.New("not a member")
	ErrUnauthorized      = errors.New("not the group owner")
	ErrNoIdentity        = errors.New("identity not set")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotTextRoom       = errors.New("not a text room")
)
