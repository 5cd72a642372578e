package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedSide = errors.New("unsupported side")
	ErrTradeTooLarge   = errors.New("trade exceeds pool limit")
	ErrMathOverflow    = errors.New("math overflow")
)

// ConvergenceError is returned when an iterative solver exhausts its budget.
type ConvergenceError struct {
	Solver     string
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations", e.Solver, e.Iterations)
}

// UnsupportedPoolTypeError marks a pool-type tag with no registered handler.
type UnsupportedPoolTypeError struct {
	Type PoolType
}

func (e *UnsupportedPoolTypeError) Error() string {
	return fmt.Sprintf("unsupported pool type %q", string(e.Type))
}

// UpstreamUnavailableError means a whole dependency (chain or metadata) is down.
type UpstreamUnavailableError struct {
	Source string
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }
