package verify

import (
	"errors"
	"fmt"
)

// Stage sentinels. Every failed verification wraps exactly one of them.
var (
	ErrParse       = errors.New("parse error")
	ErrSignature   = errors.New("signature error")
	ErrAttestation = errors.New("attestation error")
	ErrProof       = errors.New("proof error")
	// ErrDecode is reserved; application data decoding falls back instead of failing.
	ErrDecode = errors.New("decode error")
)

// StageError ties a failure to the pipeline stage that produced it
type StageError struct {
	Stage error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %v", e.Stage, e.Err)
}

// Unwrap exposes both the stage sentinel and the underlying cause to errors.Is
func (e *StageError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

func stageError(stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
