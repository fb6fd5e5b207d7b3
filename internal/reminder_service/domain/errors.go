package domain

import "errors"

var (
	// ErrCustomerNotFound is returned when a referenced customer does not exist.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrBucketConfigNotFound is returned when no (company, bucket) config row exists.
	ErrBucketConfigNotFound = errors.New("bucket config not found")
	// ErrInvalidPolicy is returned for a missing or invalid consolidation policy.
	ErrInvalidPolicy = errors.New("invalid consolidation policy")
)
