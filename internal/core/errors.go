package core

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrGateway             = errors.New("payment gateway failure")
	ErrExecutionFailure    = errors.New("benchmark execution failed")
	ErrQueueFull           = errors.New("job queue is full")
	ErrUnauthorized        = errors.New("unauthorized")
)
