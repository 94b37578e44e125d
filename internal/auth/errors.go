package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")
	ErrEmailTaken            = errors.New("Email already registered")
	ErrInvalidFullname       = errors.New("Invalid fullname")
	ErrWeakPassword          = errors.New("Password must be at least 8 characters with a letter, a number and a special character")
)
