//go:build darwin || linux

// Package native loads liblunkwill at runtime and calls its argument
// constructors from Go without cgo.
package native

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/lunkwill/internal/abi"
	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/ebitengine/purego"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed       = errors.New("native: library closed")
	ErrNullRecord   = errors.New("native: library returned NULL")
	ErrEmbeddedNull = errors.New("native: string contains a NUL byte")
)

// Library is a loaded liblunkwill. Calls are safe for concurrent use until
// Close.
type Library struct {
	path string

	mu     sync.RWMutex
	handle uintptr

	createFromString func(string) *abi.Record
	create           func(*byte, uintptr) *abi.Record
	deleteArgument   func(*abi.Record)
}

// Open loads the shared library at path and binds the argument API.
func Open(path string) (*Library, error) {
	if err := abi.Verify(); err != nil {
		return nil, err
	}
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("purego dlopen %s: %w", path, err)
	}
	l := &Library{path: path, handle: handle}
	for _, sym := range []string{"LWArgumentCreateFromString", "LWArgumentCreate", "LWArgumentDelete"} {
		if _, err := purego.Dlsym(handle, sym); err != nil {
			_ = purego.Dlclose(handle)
			return nil, fmt.Errorf("native: %s: missing symbol %s: %w", path, sym, err)
		}
	}
	purego.RegisterLibFunc(&l.createFromString, handle, "LWArgumentCreateFromString")
	purego.RegisterLibFunc(&l.create, handle, "LWArgumentCreate")
	purego.RegisterLibFunc(&l.deleteArgument, handle, "LWArgumentDelete")
	log.Debug().Str("path", path).Msg("native.Open loaded library")
	return l, nil
}

func (l *Library) Path() string {
	return l.path
}

// Inspect builds a native record from s and passes it to fn. The record is
// deleted when fn returns.
func (l *Library) Inspect(s string, fn func(r *abi.Record)) error {
	if strings.IndexByte(s, 0) >= 0 {
		return ErrEmbeddedNull
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.handle == 0 {
		return ErrClosed
	}
	rec := l.createFromString(s)
	if rec == nil {
		return ErrNullRecord
	}
	defer l.deleteArgument(rec)
	fn(rec)
	return nil
}

// ArgumentFromString calls LWArgumentCreateFromString and copies the result
// into a Go argument.
func (l *Library) ArgumentFromString(s string) (*argument.Argument, error) {
	var arg *argument.Argument
	err := l.Inspect(s, func(r *abi.Record) {
		arg = r.Argument()
	})
	return arg, err
}

// ArgumentFromBytes calls LWArgumentCreate, which copies b on the native
// side, and copies the result back.
func (l *Library) ArgumentFromBytes(b []byte) (*argument.Argument, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.handle == 0 {
		return nil, ErrClosed
	}
	var p *byte
	if len(b) > 0 {
		p = &b[0]
	}
	rec := l.create(p, uintptr(len(b)))
	if rec == nil {
		return nil, ErrNullRecord
	}
	defer l.deleteArgument(rec)
	return rec.Argument(), nil
}

func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}
