package narrative

import "errors"

var (
	// ErrUnavailable indicates the inference backend could not be spawned
	// or exited abnormally.
	ErrUnavailable = errors.New("narrative backend unavailable")

	// ErrTimeout indicates a single-shot invocation exceeded its wall-clock
	// budget and the backing process was terminated.
	ErrTimeout = errors.New("narrative generation timed out")

	// ErrNoDiscussionHistory indicates a closing summary was requested for
	// a finding whose discussion thread is empty.
	ErrNoDiscussionHistory = errors.New("finding has no discussion history to summarize")
)
