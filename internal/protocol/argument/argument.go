// Package argument holds the byte payloads carried by protocol messages.
package argument

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInvalidLength = errors.New("argument: invalid length")
	ErrReleased      = errors.New("argument: released")
)

// Ownership records whether an argument owns its payload or aliases a
// buffer that belongs to the caller.
type Ownership uint8

const (
	// Owned payloads are private copies.
	Owned Ownership = iota
	// Borrowed payloads alias the caller's buffer; writes to that buffer
	// are visible through the argument.
	Borrowed
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return fmt.Sprintf("ownership(%d)", uint8(o))
	}
}

// Argument is one opaque payload of a message.
//
// A retainable argument is released together with the message that carries
// it. Callers that keep an argument beyond the lifetime of its message clear
// the flag with SetRetainable(false).
type Argument struct {
	data       []byte
	ownership  Ownership
	retainable bool
	released   bool
}

// New copies data into a new owned argument.
func New(data []byte) *Argument {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Argument{data: buf, ownership: Owned, retainable: true}
}

// Borrow wraps data without copying it.
func Borrow(data []byte) *Argument {
	return &Argument{data: data, ownership: Borrowed, retainable: true}
}

// Own takes ownership of data without copying it. The caller must not
// touch data afterwards.
func Own(data []byte) *Argument {
	return &Argument{data: data, ownership: Owned, retainable: true}
}

// FromString copies the bytes of s. The empty string yields a zero-length
// argument.
func FromString(s string) *Argument {
	return &Argument{data: []byte(s), ownership: Owned, retainable: true}
}

func FromInt8(v int8) *Argument {
	return FromUint8(uint8(v))
}

func FromUint8(v uint8) *Argument {
	return &Argument{data: []byte{v}, ownership: Owned, retainable: true}
}

// FromInt16 encodes v in network byte order.
func FromInt16(v int16) *Argument {
	return FromUint16(uint16(v))
}

// FromUint16 encodes v in network byte order.
func FromUint16(v uint16) *Argument {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return &Argument{data: buf, ownership: Owned, retainable: true}
}

// FromInt32 encodes v in network byte order.
func FromInt32(v int32) *Argument {
	return FromUint32(uint32(v))
}

// FromUint32 encodes v in network byte order.
func FromUint32(v uint32) *Argument {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return &Argument{data: buf, ownership: Owned, retainable: true}
}

// Bytes returns the payload. The slice is shared with the argument.
func (a *Argument) Bytes() []byte {
	return a.data
}

// Len returns the payload length in bytes.
func (a *Argument) Len() int {
	return len(a.data)
}

func (a *Argument) Ownership() Ownership {
	return a.ownership
}

func (a *Argument) Retainable() bool {
	return a.retainable
}

func (a *Argument) SetRetainable(v bool) {
	a.retainable = v
}

func (a *Argument) Released() bool {
	return a.released
}

// Release drops the payload. A borrowed buffer is detached and left intact.
func (a *Argument) Release() {
	if a.released {
		return
	}
	if a.ownership == Owned {
		clear(a.data)
	}
	a.data = nil
	a.released = true
}

// StringValue returns the payload as a string.
func (a *Argument) StringValue() string {
	return string(a.data)
}

func (a *Argument) Int8() (int8, error) {
	v, err := a.Uint8()
	return int8(v), err
}

func (a *Argument) Uint8() (uint8, error) {
	if err := a.expectLen(1); err != nil {
		return 0, err
	}
	return a.data[0], nil
}

func (a *Argument) Int16() (int16, error) {
	v, err := a.Uint16()
	return int16(v), err
}

func (a *Argument) Uint16() (uint16, error) {
	if err := a.expectLen(2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(a.data), nil
}

func (a *Argument) Int32() (int32, error) {
	v, err := a.Uint32()
	return int32(v), err
}

func (a *Argument) Uint32() (uint32, error) {
	if err := a.expectLen(4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(a.data), nil
}

func (a *Argument) expectLen(n int) error {
	if a.released {
		return ErrReleased
	}
	if len(a.data) != n {
		return fmt.Errorf("%w: got %d want %d", ErrInvalidLength, len(a.data), n)
	}
	return nil
}
