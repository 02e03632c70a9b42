package lfs

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrUsage marks invalid command-line usage
	ErrUsage = errors.New("usage error")
	// ErrEnvironment marks a missing or unusable repository
	ErrEnvironment = errors.New("environment error")
	// ErrPipeline marks a failure before any mutation happened
	ErrPipeline = errors.New("pipeline error")
	// ErrRepair marks a failure during the repair sequence
	ErrRepair = errors.New("repair error")
	// ErrVerifyFailed means verify mode found files out of LFS policy
	ErrVerifyFailed = errors.New("files are not stored in LFS")
)

// Stage names a step of the pipeline
type Stage string

const (
	StageOpening     Stage = "opening"
	StageScanning    Stage = "scanning"
	StageResolving   Stage = "resolving"
	StageVerifying   Stage = "verifying"
	StageReconciling Stage = "reconciling"
	StageRepairing   Stage = "repairing"
)

// StageError wraps a failure with the stage it happened in
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes the cause
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is maps the stage onto its error kind
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrEnvironment:
		return e.Stage == StageOpening
	case ErrPipeline:
		switch e.Stage {
		case StageScanning, StageResolving, StageVerifying, StageReconciling:
			return true
		}
	case ErrRepair:
		return e.Stage == StageRepairing
	}
	return false
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// NewEnvironmentError wraps a failure to locate or open the repository
func NewEnvironmentError(err error) error {
	return stageErr(StageOpening, err)
}

// UsageError is an invalid invocation
type UsageError struct {
	Msg string
}

// Error implements the error interface
func (e *UsageError) Error() string {
	return e.Msg
}

// Is implements errors.Is support
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}
