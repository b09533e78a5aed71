package session

import "errors"

var (
	ErrInvalidURL       = errors.New("url must be an absolute http or https address")
	ErrBusy             = errors.New("too many active sessions")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotRequester     = errors.New("only the requester can use these controls")
	ErrUnknownAction    = errors.New("unknown action")
	ErrAlreadyChosen    = errors.New("format already chosen")
	ErrNotActionable    = errors.New("session has no active controls")
	ErrDeleteInProgress = errors.New("delete already in progress")
	ErrShuttingDown     = errors.New("bot is shutting down")
)
