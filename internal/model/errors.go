package model

import "errors"

var (
	// Account related errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProfileLinked      = errors.New("user profile already linked to another account")

	// Profile related errors
	ErrUserNotFound = errors.New("user not found")

	// Course related errors
	ErrCourseNotFound  = errors.New("course not found")
	ErrCourseFull      = errors.New("course is full")
	ErrAlreadyEnrolled = errors.New("user already exists in the course")
	ErrNotEnrolled     = errors.New("user is not present in the course")
	ErrCapacityTooLow  = errors.New("capacity below current enrollment")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
