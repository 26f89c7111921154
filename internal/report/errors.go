package report

import "errors"

var (
	// ErrEmptyStore indicates the store holds no findings at all.
	ErrEmptyStore = errors.New("no findings exist in the audit store")

	// ErrNoMatchingData indicates findings exist but none satisfy the
	// supplied filter criteria.
	ErrNoMatchingData = errors.New("no findings match the requested filters")
)
