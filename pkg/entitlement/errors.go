package entitlement

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing entity. Absence of membership is always
// reported through this type, never collapsed into a permission denial.
type NotFoundError struct {
	Resource string
	Reason   string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Resource + " not found"
}

// ForbiddenError reports a role-hierarchy violation. Rule names which check
// failed so callers can surface a specific reason.
type ForbiddenError struct {
	Rule   string
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// ConflictError reports a uniqueness violation, such as duplicate membership
// or a duplicate pending invitation.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// LimitError reports a quota admission failure. Current/Max and Shared let
// the caller produce an accurate message for personal vs organisation scope.
type LimitError struct {
	Resource string
	Current  int
	Max      int
	Shared   bool
}

func (e *LimitError) Error() string {
	if e.Shared {
		return fmt.Sprintf("organisation %s limit reached (%d/%d)", e.Resource, e.Current, e.Max)
	}
	return fmt.Sprintf("%s limit reached (%d/%d)", e.Resource, e.Current, e.Max)
}

// UpstreamError reports a billing-provider call failure. These are retryable
// from the caller's point of view.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var f *ForbiddenError
	return errors.As(err, &f)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsLimitReached reports whether err is a LimitError.
func IsLimitReached(err error) bool {
	var l *LimitError
	return errors.As(err, &l)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}
