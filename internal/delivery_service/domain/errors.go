package domain

import "errors"

var (
	// ErrSendLogNotFound means no send log carries the provider message id.
	ErrSendLogNotFound = errors.New("send log not found")
)
