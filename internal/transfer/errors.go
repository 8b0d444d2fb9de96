package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrChannelNotReady    = errors.New("channel not ready")
	ErrTransferInProgress = errors.New("transfer already in progress")
	ErrIntegrityFault     = errors.New("received size does not match declared size")
	ErrConnectionLost     = errors.New("connection lost")
	ErrNoActiveTransfer   = errors.New("no active transfer")
	ErrUnexpectedFrame    = errors.New("unexpected frame")
	ErrMalformedFrame     = errors.New("malformed frame")
	ErrDrainStalled       = errors.New("chunk queue did not drain")
	ErrShortSource        = errors.New("source ended before declared size")
)

type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" {
		if e.Details != "" {
			return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.File, e.Err, e.Details)
		}
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}
