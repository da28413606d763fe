package identity

import "errors"

// Identity errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user with this id already exists")
	ErrUsernameTaken = errors.New("username already taken in tenant")
	ErrEmailTaken    = errors.New("email already registered in tenant")
	ErrSelfLockout   = errors.New("admins cannot demote or deactivate themselves")
)
