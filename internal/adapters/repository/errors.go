package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
)
