package domain

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollEnded        = errors.New("poll has ended")
	ErrQuestionNotFound = errors.New("question not found")
	ErrRoomIDTaken      = errors.New("room public id already taken")

	ErrInvalidChoice   = errors.New("invalid poll choice")
	ErrInvalidPayload  = errors.New("invalid event payload")
	ErrEventNotAllowed = errors.New("event not allowed for role")
	ErrUnknownEvent    = errors.New("unknown event")

	ErrMalformedChannel = errors.New("malformed channel name")
	ErrAdminDenied      = errors.New("admin role denied")
)
