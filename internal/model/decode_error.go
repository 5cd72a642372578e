package model

import "fmt"

// DecodeError is a pool-scoped failure of a batched read: the call reverted or
// its return data did not match the expected shape.
type DecodeError struct {
	Pool string `json:"pool"`
	Call string `json:"call"`
	Err  error  `json:"-"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s for pool %s: %v", e.Call, e.Pool, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
