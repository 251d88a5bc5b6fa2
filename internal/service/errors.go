package service

import "errors"

// ErrValidation marks input the caller must fix. The wrapped message is safe
// to return to clients.
var ErrValidation = errors.New("validation failed")

// ErrInvalidPassword is returned by ChangePassword when the current password
// does not match.
var ErrInvalidPassword = errors.New("invalid current password")
