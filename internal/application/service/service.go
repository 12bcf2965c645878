// Package service holds the read-side and authoring use cases that sit next
// to the transition engine: history views, audit exports and content items.
package service

import "errors"

// Logger is the minimal logging surface used by services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ErrInvalidInput marks a request that fails validation
var ErrInvalidInput = errors.New("invalid input")
