package main

/*
#include "lunkwill.h"
*/
import "C"

import "unsafe"

// Go-side conversions for callers that cannot name C types, such as tests.

func newCString(s string) *C.char {
	return C.CString(s)
}

func goString(p *C.char) string {
	return C.GoString(p)
}

func newCBuffer(b []byte) unsafe.Pointer {
	p, _ := cBytes(b)
	return p
}

func freeC(p unsafe.Pointer) {
	C.free(p)
}

func cSize(n int) C.size_t {
	return C.size_t(n)
}

func goSize(n C.size_t) int {
	return int(n)
}

// cArgument names LWArgument for Go files without a cgo preamble.
type cArgument = C.LWArgument

// cValidator names LWValidator; its zero value is the invalid handle.
type cValidator = C.LWValidator
