// Package core defines sentinel errors.
package core

import "errors"

var (
	// Pipeline errors
	ErrSourceFailed = errors.New("dofuswire: capture source failed")

	// Sink errors
	ErrSinkNotFound   = errors.New("dofuswire: sink not found")
	ErrSinkInitFailed = errors.New("dofuswire: sink init failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("dofuswire: invalid configuration")
)
