package main

/*
#include "lunkwill.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/danmuck/lunkwill/internal/abi"
	"github.com/danmuck/lunkwill/internal/protocol/argument"
)

// newRecord allocates a zeroed, retainable record. data must already be a
// malloc buffer (or caller memory for borrowed records).
func newRecord(data unsafe.Pointer, length C.size_t) *C.LWArgument {
	size := C.size_t(C.sizeof_LWArgument)
	p := C.lw_alloc(size)
	if p == nil {
		return nil
	}
	C.memset(p, 0, size)
	rec := (*C.LWArgument)(p)
	rec.length = length
	rec.data = (*C.uint8_t)(data)
	rec.isRetainable = C.bool(true)
	return rec
}

// recordFromBytes copies b into a new record.
func recordFromBytes(b []byte) *C.LWArgument {
	data, ok := cBytes(b)
	if !ok {
		return nil
	}
	rec := newRecord(data, C.size_t(len(b)))
	if rec == nil && data != nil {
		C.free(data)
	}
	return rec
}

func recordFromArgument(arg *argument.Argument) *C.LWArgument {
	rec := recordFromBytes(arg.Bytes())
	if rec != nil {
		rec.isRetainable = C.bool(arg.Retainable())
	}
	return rec
}

func view(arg *C.LWArgument) *abi.Record {
	return abi.View(unsafe.Pointer(arg))
}

// borrowArgument aliases the record payload without copying.
func borrowArgument(arg *C.LWArgument) *argument.Argument {
	r := view(arg)
	a := argument.Borrow(r.Bytes())
	a.SetRetainable(r.IsRetainable)
	return a
}

//export LWArgumentCreate
func LWArgumentCreate(data unsafe.Pointer, length C.size_t) *C.LWArgument {
	if data == nil && length > 0 {
		return nil
	}
	if length == 0 {
		return newRecord(nil, 0)
	}
	return recordFromBytes(unsafe.Slice((*byte)(data), int(length)))
}

//export LWArgumentCreateWithoutCopying
func LWArgumentCreateWithoutCopying(data unsafe.Pointer, length C.size_t) *C.LWArgument {
	if data == nil && length > 0 {
		return nil
	}
	if length == 0 {
		data = nil
	}
	rec := newRecord(data, length)
	if rec != nil {
		markBorrowed(uintptr(unsafe.Pointer(rec)))
	}
	return rec
}

//export LWArgumentCreateFromString
func LWArgumentCreateFromString(input *C.char) *C.LWArgument {
	if input == nil {
		return nil
	}
	n := C.strlen(input)
	if n == 0 {
		return newRecord(nil, 0)
	}
	return recordFromBytes(unsafe.Slice((*byte)(unsafe.Pointer(input)), int(n)))
}

//export LWArgumentCreateFrom8BitInteger
func LWArgumentCreateFrom8BitInteger(v C.int8_t) *C.LWArgument {
	return recordFromArgument(argument.FromInt8(int8(v)))
}

//export LWArgumentCreateFrom8BitUnsignedInteger
func LWArgumentCreateFrom8BitUnsignedInteger(v C.uint8_t) *C.LWArgument {
	return recordFromArgument(argument.FromUint8(uint8(v)))
}

//export LWArgumentCreateFrom16BitInteger
func LWArgumentCreateFrom16BitInteger(v C.int16_t) *C.LWArgument {
	return recordFromArgument(argument.FromInt16(int16(v)))
}

//export LWArgumentCreateFrom16BitUnsignedInteger
func LWArgumentCreateFrom16BitUnsignedInteger(v C.uint16_t) *C.LWArgument {
	return recordFromArgument(argument.FromUint16(uint16(v)))
}

//export LWArgumentCreateFrom32BitInteger
func LWArgumentCreateFrom32BitInteger(v C.int32_t) *C.LWArgument {
	return recordFromArgument(argument.FromInt32(int32(v)))
}

//export LWArgumentCreateFrom32BitUnsignedInteger
func LWArgumentCreateFrom32BitUnsignedInteger(v C.uint32_t) *C.LWArgument {
	return recordFromArgument(argument.FromUint32(uint32(v)))
}

//export LWArgumentSetRetainable
func LWArgumentSetRetainable(arg *C.LWArgument, retainable C.bool) {
	if arg != nil {
		arg.isRetainable = retainable
	}
}

//export LWArgumentGetData
func LWArgumentGetData(arg *C.LWArgument) unsafe.Pointer {
	if arg == nil {
		return nil
	}
	return unsafe.Pointer(arg.data)
}

//export LWArgumentGetLength
func LWArgumentGetLength(arg *C.LWArgument) C.size_t {
	if arg == nil {
		return 0
	}
	return arg.length
}

// LWArgumentGetStringValue returns a NUL-terminated copy of the payload,
// released with LWFree.
//
//export LWArgumentGetStringValue
func LWArgumentGetStringValue(arg *C.LWArgument) *C.char {
	if arg == nil {
		return nil
	}
	return cString(borrowArgument(arg).StringValue())
}

// Integer getters return 0 when the payload width does not match.

//export LWArgumentGet8BitIntegerValue
func LWArgumentGet8BitIntegerValue(arg *C.LWArgument) C.int8_t {
	if arg == nil {
		return 0
	}
	v, _ := borrowArgument(arg).Int8()
	return C.int8_t(v)
}

//export LWArgumentGet8BitUnsignedIntegerValue
func LWArgumentGet8BitUnsignedIntegerValue(arg *C.LWArgument) C.uint8_t {
	if arg == nil {
		return 0
	}
	v, _ := borrowArgument(arg).Uint8()
	return C.uint8_t(v)
}

//export LWArgumentGet16BitIntegerValue
func LWArgumentGet16BitIntegerValue(arg *C.LWArgument) C.int16_t {
	if arg == nil {
		return 0
	}
	v, _ := borrowArgument(arg).Int16()
	return C.int16_t(v)
}

//export LWArgumentGet16BitUnsignedIntegerValue
func LWArgumentGet16BitUnsignedIntegerValue(arg *C.LWArgument) C.uint16_t {
	if arg == nil {
		return 0
	}
	v, _ := borrowArgument(arg).Uint16()
	return C.uint16_t(v)
}

//export LWArgumentGet32BitIntegerValue
func LWArgumentGet32BitIntegerValue(arg *C.LWArgument) C.int32_t {
	if arg == nil {
		return 0
	}
	v, _ := borrowArgument(arg).Int32()
	return C.int32_t(v)
}

//export LWArgumentGet32BitUnsignedIntegerValue
func LWArgumentGet32BitUnsignedIntegerValue(arg *C.LWArgument) C.uint32_t {
	if arg == nil {
		return 0
	}
	v, _ := borrowArgument(arg).Uint32()
	return C.uint32_t(v)
}

// LWArgumentDelete frees the record and, unless it was created without
// copying, its payload.
//
//export LWArgumentDelete
func LWArgumentDelete(arg *C.LWArgument) {
	if arg == nil {
		return
	}
	if !takeBorrowed(uintptr(unsafe.Pointer(arg))) && arg.data != nil {
		C.free(unsafe.Pointer(arg.data))
	}
	C.free(unsafe.Pointer(arg))
}

//export LWArgumentPrint
func LWArgumentPrint(arg *C.LWArgument) {
	if arg == nil {
		return
	}
	fmt.Println(borrowArgument(arg).Format())
}

//export LWArgumentGetStringRepresentation
func LWArgumentGetStringRepresentation(arg *C.LWArgument, dst *C.char, length C.size_t) {
	if arg == nil {
		return
	}
	fillString(dst, length, borrowArgument(arg).Format())
}
