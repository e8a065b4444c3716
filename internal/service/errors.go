package service

import "errors"

// Domain errors. Handlers map each of these to a response code; anything
// else surfaces as an internal error.
var (
	ErrInvalidContent      = errors.New("invalid exam content")
	ErrNotFound            = errors.New("not found")
	ErrIntegrity           = errors.New("stored exam content failed integrity check")
	ErrCorruptContent      = errors.New("published exam content is corrupt")
	ErrUpstreamUnavailable = errors.New("content store unavailable")

	ErrAlreadyAttempted = errors.New("exam already attempted")
	ErrAlreadyDecided   = errors.New("exam request already decided")
	ErrNoActiveSession  = errors.New("no active session")

	ErrExamNotStarted     = errors.New("exam mode is not enabled")
	ErrNotApproved        = errors.New("exam request is not approved")
	ErrNotOwner           = errors.New("not the owner of this exam")
	ErrDeadlinePassed     = errors.New("exam deadline has passed")
	ErrResultsNotReleased = errors.New("results have not been released")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token has been revoked")
)
