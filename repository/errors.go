package repository

import "errors"

var (
	// ErrNotFound is returned by GetExisting when the aggregate's stream holds no events.
	ErrNotFound = errors.New("aggregate not found")

	// ErrDecodingEventFailed wraps failures to map a stored event back to a domain event.
	ErrDecodingEventFailed = errors.New("decoding stored event failed")

	// ErrEncodingEventFailed wraps failures to serialize a pending domain event.
	ErrEncodingEventFailed = errors.New("encoding pending event failed")

	// ErrFlushFailed indicates that at least one aggregate in the unit of work
	// could not be committed; inspect the FlushResults for details.
	ErrFlushFailed = errors.New("flushing unit of work failed")
)
