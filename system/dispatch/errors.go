// Package dispatch implements the Signal Dispatch Service: the Signal
// Store, the Transaction Manager, and the Trigger Scheduler that move
// signal values between providers and consumers.
package dispatch

import "errors"

// Sentinel errors returned by store, transaction, and scheduler operations.
var (
	ErrNotFound       = errors.New("dispatch: signal or trigger not found")
	ErrInvalidTrigger = errors.New("dispatch: trigger requires a callback and either a cycle time or the spontaneous behavior")
	ErrInvalidMode    = errors.New("dispatch: operation not permitted in the current mode")
)
