package domain

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomClosed   = errors.New("room closed")
	ErrRoomFull     = errors.New("room is full")
	ErrPeerNotFound = errors.New("peer not found")
	ErrNotMember    = errors.New("not a room member")
)
