// Package abi describes the C-ABI argument record shared with native code.
//
// The C declaration is:
//
//	typedef struct {
//		size_t   length;
//		uint8_t *data;
//		bool     isRetainable;
//	} LWArgument;
package abi

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/danmuck/lunkwill/internal/protocol/argument"
)

// Record mirrors LWArgument field for field. Go lays out these field types
// with the same sizes, alignments and padding as the platform C compiler.
type Record struct {
	Length       uintptr
	Data         *byte
	IsRetainable bool
}

// WordSize is the size of size_t and of a data pointer on this platform.
const WordSize = unsafe.Sizeof(uintptr(0))

// Field is the placement of one record field.
type Field struct {
	Name   string
	Offset uintptr
	Size   uintptr
	Align  uintptr
}

// Layout is the placement of a whole record.
type Layout struct {
	Size   uintptr
	Align  uintptr
	Fields []Field
}

// Expected computes the C layout of LWArgument for a platform whose size_t
// and pointers are wordSize bytes wide: each field starts at the next
// multiple of its alignment and the record size is rounded up to the
// largest alignment.
func Expected(wordSize uintptr) Layout {
	fields := []Field{
		{Name: "length", Size: wordSize, Align: wordSize},
		{Name: "data", Size: wordSize, Align: wordSize},
		{Name: "isRetainable", Size: 1, Align: 1},
	}
	var offset, align uintptr = 0, 1
	for i := range fields {
		offset = alignUp(offset, fields[i].Align)
		fields[i].Offset = offset
		offset += fields[i].Size
		align = max(align, fields[i].Align)
	}
	return Layout{Size: alignUp(offset, align), Align: align, Fields: fields}
}

// Native reports the layout Go uses for Record.
func Native() Layout {
	var r Record
	return Layout{
		Size:  unsafe.Sizeof(r),
		Align: unsafe.Alignof(r),
		Fields: []Field{
			{Name: "length", Offset: unsafe.Offsetof(r.Length), Size: unsafe.Sizeof(r.Length), Align: unsafe.Alignof(r.Length)},
			{Name: "data", Offset: unsafe.Offsetof(r.Data), Size: unsafe.Sizeof(r.Data), Align: unsafe.Alignof(r.Data)},
			{Name: "isRetainable", Offset: unsafe.Offsetof(r.IsRetainable), Size: unsafe.Sizeof(r.IsRetainable), Align: unsafe.Alignof(r.IsRetainable)},
		},
	}
}

// Verify fails when Record does not match the C layout of this platform.
func Verify() error {
	return Compare(Native(), Expected(WordSize))
}

// Compare returns an error describing the first difference between two
// layouts.
func Compare(got, want Layout) error {
	if got.Size != want.Size || got.Align != want.Align {
		return fmt.Errorf("abi: record size/align %d/%d, want %d/%d", got.Size, got.Align, want.Size, want.Align)
	}
	if len(got.Fields) != len(want.Fields) {
		return fmt.Errorf("abi: %d fields, want %d", len(got.Fields), len(want.Fields))
	}
	for i := range want.Fields {
		if got.Fields[i] != want.Fields[i] {
			return fmt.Errorf("abi: field %d is %+v, want %+v", i, got.Fields[i], want.Fields[i])
		}
	}
	return nil
}

// Image returns the bytes a C compiler stores for a record holding the
// given values, padding included, in native byte order.
func Image(length, data uintptr, retainable bool) []byte {
	l := Expected(WordSize)
	buf := make([]byte, l.Size)
	putWord(buf[l.Fields[0].Offset:], length)
	putWord(buf[l.Fields[1].Offset:], data)
	if retainable {
		buf[l.Fields[2].Offset] = 1
	}
	return buf
}

// Raw returns the in-memory bytes of r without copying.
func Raw(r *Record) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r)), unsafe.Sizeof(*r))
}

// View reinterprets a native LWArgument pointer. The record stays owned by
// whoever allocated it.
func View(p unsafe.Pointer) *Record {
	return (*Record)(p)
}

// Bytes aliases the record payload. It returns nil for an empty record.
func (r *Record) Bytes() []byte {
	if r.Data == nil || r.Length == 0 {
		return nil
	}
	return unsafe.Slice(r.Data, r.Length)
}

// Argument copies the record into a Go-owned argument.
func (r *Record) Argument() *argument.Argument {
	arg := argument.New(r.Bytes())
	arg.SetRetainable(r.IsRetainable)
	return arg
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func putWord(b []byte, v uintptr) {
	switch WordSize {
	case 8:
		binary.NativeEndian.PutUint64(b, uint64(v))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(v))
	default:
		panic(fmt.Sprintf("abi: unsupported word size %d", WordSize))
	}
}
