// Package sysgate provides the core types shared by the metrics gateway.
package sysgate

import (
	"context"
	"errors"
)

// A Snapshot is the complete set of metric groups produced by one refresh,
// keyed by group name.
//
// A Snapshot is replaced wholesale on every refresh and must not be mutated
// once it has been handed to the Provider.
type Snapshot map[string]any

// A Collector produces Snapshots.
//
// Groups lists every group the collector knows how to produce. A group listed
// there may still be missing from a Snapshot when its source failed.
type Collector interface {
	Groups() []string
	Collect(ctx context.Context) (Snapshot, error)
}

// CollectorFunc adapts a plain function into a Collector exposing a fixed
// set of groups.
type CollectorFunc struct {
	Names []string
	Fn    func(ctx context.Context) (Snapshot, error)
}

// Groups returns the fixed group names.
func (c CollectorFunc) Groups() []string { return c.Names }

// Collect calls Fn.
func (c CollectorFunc) Collect(ctx context.Context) (Snapshot, error) { return c.Fn(ctx) }

var (
	// ErrBind indicates the listening socket could not be resolved or opened.
	// It is only returned at startup and is fatal to the process.
	ErrBind = errors.New("bind failed")

	// ErrMethodNotFound is returned by the resolver when a method name
	// neither matches a builtin nor names an exposed metric group.
	ErrMethodNotFound = errors.New("method not found")

	// ErrUnknownGroup is returned by the provider when the current
	// snapshot does not hold the requested group.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrInvalidParams indicates a call carried parameters its method
	// does not accept.
	ErrInvalidParams = errors.New("invalid params")

	// ErrFatal indicates a severe problem related to development.
	ErrFatal = errors.New("fatal error")
)
