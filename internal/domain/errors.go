package domain

import "errors"

var (
	// ErrInvalidRequest is returned for a malformed session request (e.g. question count <= 0).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound is returned when a session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoQuestionsAvailable is returned when the filtered question pool is empty.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrSessionCompleted is returned for answer or question reads against a finished session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrSessionNotCompleted is returned when results are requested before completion.
	ErrSessionNotCompleted = errors.New("session not completed")
	// ErrInvalidOption is returned when a selected option index is outside [0,3].
	ErrInvalidOption = errors.New("selected option out of range")
	// ErrAnswerOutOfSync is returned when a submission carries a question index
	// that does not match the session's current index (stale client retry).
	ErrAnswerOutOfSync = errors.New("answer out of sync with session")
)
