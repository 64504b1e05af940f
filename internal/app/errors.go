package app

import "errors"

var (
	// ErrTweetNotFound covers both a missing tweet and a tweet owned by
	// someone else; callers cannot tell the two apart.
	ErrTweetNotFound = errors.New("tweet not found")
	// ErrUsernameTaken indicates a registration with a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
)
