package domain

import "errors"

// Domain errors - use these for consistent error handling
var (
	// Auth errors
	ErrUserNotFound    = errors.New("user not found")
	ErrTokenMissing    = errors.New("authentication token missing")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrUnauthenticated = errors.New("please login to access this resource")

	// Message errors
	ErrChatRequired    = errors.New("chat id is required")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMembersRequired = errors.New("members are required")
)
