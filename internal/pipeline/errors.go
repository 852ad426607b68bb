package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrMatchNotFound marks an item no catalog entry scored high enough
	// for. It is not fatal: the item stays unmapped until reassigned.
	ErrMatchNotFound = errors.New("no catalog entry matched")

	// ErrInvalidState is returned for commands the item's stage forbids.
	ErrInvalidState = errors.New("invalid item state")

	// ErrUnknownItem is returned for ids the session does not hold.
	ErrUnknownItem = errors.New("unknown item")

	// ErrBusy is returned when a transcode or upload phase is already running.
	ErrBusy = errors.New("session busy")

	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrNotTranscoded is returned by UploadReady while items are still
	// pending or processing.
	ErrNotTranscoded = errors.New("batch not fully transcoded")

	// ErrNoGateway is returned by UploadReady when no gateway is configured.
	ErrNoGateway = errors.New("no upload gateway configured")
)

// ValidationError rejects a file before any item is created for it.
type ValidationError struct {
	Name     string
	MIMEType string
}

func (e *ValidationError) Error() string {
	if e.MIMEType == "" {
		return fmt.Sprintf("%s: unsupported file type", e.Name)
	}
	return fmt.Sprintf("%s: unsupported file type %q", e.Name, e.MIMEType)
}

// UploadError is a gateway failure scoped to one item.
type UploadError struct {
	ItemID  string
	EntryID string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s: %v", e.EntryID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func stateError(it *Item, op string) error {
	return fmt.Errorf("%w: cannot %s item %s while %s", ErrInvalidState, op, it.ID, it.Stage)
}
