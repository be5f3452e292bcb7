package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat  = errors.New("protocol: invalid format")
	ErrMalformedReply = errors.New("protocol: malformed reply")
)

// ErrorKind is the token after ERROR on the wire.
type ErrorKind string

const (
	KindInvalidFormat      ErrorKind = "INVALID_FORMAT"
	KindOutOfBounds        ErrorKind = "OUT_OF_BOUNDS"
	KindColorNotSupported  ErrorKind = "COLOR_NOT_SUPPORTED"
	KindCompleteOverlap    ErrorKind = "COMPLETE_OVERLAP"
	KindNoNoteAtCoordinate ErrorKind = "NO_NOTE_AT_COORDINATE"
	KindPinNotFound        ErrorKind = "PIN_NOT_FOUND"
)

// FormatError is a command rejected before it touched the board.
type FormatError struct {
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFormat, e.Detail)
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}

func formatError(detail string) error {
	return &FormatError{Detail: detail}
}

func malformed(kind, line string) error {
	return fmt.Errorf("%w: %s: %q", ErrMalformedReply, kind, line)
}
