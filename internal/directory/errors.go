package directory

import (
	"errors"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

var (
	ErrNoRoomAvailable = errors.New("no open room available")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrInvalidCapacity = errors.New("invalid room capacity")
	ErrAlreadyInRoom   = errors.New("peer is already in a room")
	ErrNotInRoom       = errors.New("peer is not in a room")
	ErrNotAuthority    = errors.New("peer is not the room authority")
	ErrVersionMismatch = errors.New("game version mismatch")
)

// Code maps a directory error to its wire error code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNoRoomAvailable):
		return protocol.CodeNoRoomAvailable
	case errors.Is(err, ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return protocol.CodeRoomFull
	case errors.Is(err, ErrInvalidCapacity):
		return protocol.CodeInvalidCapacity
	case errors.Is(err, ErrAlreadyInRoom):
		return protocol.CodeAlreadyInRoom
	case errors.Is(err, ErrNotInRoom):
		return protocol.CodeNotInRoom
	case errors.Is(err, ErrNotAuthority):
		return protocol.CodeNotAuthority
	case errors.Is(err, ErrVersionMismatch):
		return protocol.CodeVersionMismatch
	default:
		return protocol.CodeInternal
	}
}
