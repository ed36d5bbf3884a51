//go:build !darwin && !linux

package native

import (
	"errors"

	"github.com/danmuck/lunkwill/internal/abi"
	"github.com/danmuck/lunkwill/internal/protocol/argument"
)

var (
	ErrClosed       = errors.New("native: library closed")
	ErrNullRecord   = errors.New("native: library returned NULL")
	ErrEmbeddedNull = errors.New("native: string contains a NUL byte")
	ErrUnsupported  = errors.New("native: dynamic loading is not supported on this platform")
)

type Library struct{}

func Open(path string) (*Library, error) {
	return nil, ErrUnsupported
}

func (l *Library) Path() string { return "" }

func (l *Library) Inspect(s string, fn func(r *abi.Record)) error {
	return ErrUnsupported
}

func (l *Library) ArgumentFromString(s string) (*argument.Argument, error) {
	return nil, ErrUnsupported
}

func (l *Library) ArgumentFromBytes(b []byte) (*argument.Argument, error) {
	return nil, ErrUnsupported
}

func (l *Library) Close() error { return nil }
