package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrAlreadyMember      = fmt.Errorf("already in room")
	ErrNotMember          = fmt.Errorf("not a member of room")
	ErrCodeSpaceExhausted = fmt.Errorf("unable to allocate room code")
)
