package message

import (
	"errors"
	"fmt"
)

var (
	ErrIncomplete    = errors.New("message: incomplete data")
	ErrEmptyArgument = errors.New("message: empty argument")
	ErrNilArgument   = errors.New("message: nil argument")
	ErrNilMessage    = errors.New("message: nil message")
)

// ArgumentError reports which argument could not be encoded.
type ArgumentError struct {
	Index int
	Err   error
}

func (e ArgumentError) Error() string {
	return fmt.Sprintf("message: argument %d: %v", e.Index, e.Err)
}

func (e ArgumentError) Unwrap() error {
	return e.Err
}
