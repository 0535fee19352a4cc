package planner

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInsufficientData    ErrorKind = "insufficient_data"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInvalidRequest      ErrorKind = "invalid_request"
)

var (
	ErrInsufficientData    = errors.New("insufficient data")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrCourseNotFound      = errors.New("course not found")
)

// PlanError is the structured failure returned to callers. It matches the
// sentinel for its kind with errors.Is.
type PlanError struct {
	Kind   ErrorKind `json:"kind"`
	Stage  string    `json:"stage"`
	Reason string    `json:"reason"`
	Err    error     `json:"-"`
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("unable to generate plan: %s: %s", e.Stage, e.Reason)
}

func (e *PlanError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	case KindInvalidRequest:
		return ErrInvalidRequest
	default:
		return ErrInsufficientData
	}
}

func insufficient(stage, reason string) *PlanError {
	return &PlanError{Kind: KindInsufficientData, Stage: stage, Reason: reason}
}

func unavailable(stage string, err error) *PlanError {
	return &PlanError{Kind: KindUpstreamUnavailable, Stage: stage, Reason: err.Error(), Err: err}
}

func invalid(format string, args ...any) *PlanError {
	return &PlanError{Kind: KindInvalidRequest, Stage: "request", Reason: fmt.Sprintf(format, args...)}
}
