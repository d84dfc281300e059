// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as the purchase flow to distinguish between different failure
// scenarios with errors.Is instead of string matching.
package repository

import "errors"

// ErrEventNotFound is returned when an event id does not exist in the
// catalog. The flow translates this into a session reset with a
// "not found" reply.
var ErrEventNotFound = errors.New("event not found")

// ErrCategoryNotFound is returned when a category name or position
// does not exist under the requested event.
var ErrCategoryNotFound = errors.New("category not found")

// ErrSoldOut is returned by the stock ledger when a conditional
// decrement finds fewer remaining seats than requested. Callers must
// not issue tickets after observing it.
var ErrSoldOut = errors.New("sold out")
