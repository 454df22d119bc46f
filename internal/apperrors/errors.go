package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found,
// or that it exists but was soft-deleted.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInvalidTransition indicates that a lifecycle action was attempted out
// of order. The record is left unchanged.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrResourceExhausted indicates that the processing worker pool is saturated
// and the submission was not accepted. Callers should retry after a backoff.
var ErrResourceExhausted = errors.New("processing capacity exhausted")

// ErrForbidden indicates the acting user does not own the referenced resource.
var ErrForbidden = errors.New("forbidden")
