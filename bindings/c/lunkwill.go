// Command c builds liblunkwill, the C-ABI shared library:
//
//	go build -buildmode=c-shared -o liblunkwill.so ./bindings/c
package main

/*
#include "lunkwill.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/danmuck/lunkwill/internal/abi"
	"github.com/danmuck/lunkwill/internal/logging"
)

const apiVersion = "0.1.0"

func init() {
	logging.ConfigureRuntime()
	if err := abi.Compare(cLayout(), abi.Native()); err != nil {
		panic(fmt.Sprintf("lunkwill: LWArgument layout mismatch: %v", err))
	}
	if err := abi.Verify(); err != nil {
		panic(fmt.Sprintf("lunkwill: %v", err))
	}
}

// cLayout reports LWArgument as the C compiler laid it out.
func cLayout() abi.Layout {
	l := abi.Native()
	fields := make([]abi.Field, len(l.Fields))
	copy(fields, l.Fields)
	fields[0].Offset = uintptr(C.lw_offset_length())
	fields[1].Offset = uintptr(C.lw_offset_data())
	fields[2].Offset = uintptr(C.lw_offset_retainable())
	return abi.Layout{
		Size:   uintptr(C.sizeof_LWArgument),
		Align:  uintptr(C.lw_align()),
		Fields: fields,
	}
}

//export LWGetVersion
func LWGetVersion() *C.char {
	return cString(apiVersion)
}

//export LWFree
func LWFree(p unsafe.Pointer) {
	if p != nil {
		C.free(p)
	}
}

// cString copies s into a NUL-terminated malloc buffer. It returns nil when
// the allocation fails.
func cString(s string) *C.char {
	buf := C.lw_alloc(C.size_t(len(s) + 1))
	if buf == nil {
		return nil
	}
	out := unsafe.Slice((*byte)(buf), len(s)+1)
	copy(out, s)
	out[len(s)] = 0
	return (*C.char)(buf)
}

// cBytes copies b into a malloc buffer. An empty b yields nil.
func cBytes(b []byte) (unsafe.Pointer, bool) {
	if len(b) == 0 {
		return nil, true
	}
	buf := C.lw_alloc(C.size_t(len(b)))
	if buf == nil {
		return nil, false
	}
	copy(unsafe.Slice((*byte)(buf), len(b)), b)
	return buf, true
}

// fillString writes s into a caller buffer of size n, truncating and always
// NUL-terminating.
func fillString(dst *C.char, n C.size_t, s string) {
	if dst == nil || n == 0 {
		return
	}
	out := unsafe.Slice((*byte)(unsafe.Pointer(dst)), int(n))
	w := copy(out[:len(out)-1], s)
	out[w] = 0
}

func main() {}
