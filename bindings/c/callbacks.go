package main

/*
#include "lunkwill.h"

extern void LWDataHandlerDelete(LWDataHandler handler);

// Reference callbacks for exercising the callback paths from Go. userInfo
// points at an int[2]: [0] counts dispatched messages, [1] counts invalid
// ones.

bool lw_reject_message(LWMessage message) {
    return false;
}

void lw_count_message(LWDataHandler handler, LWMessage message, void *userInfo) {
    ((int *)userInfo)[0]++;
}

void lw_count_invalid(LWDataHandler handler, LWMessage message, void *userInfo) {
    ((int *)userInfo)[1]++;
}

void lw_count_and_delete(LWDataHandler handler, LWMessage message, void *userInfo) {
    ((int *)userInfo)[0]++;
    LWDataHandlerDelete(handler);
}
*/
import "C"

import "unsafe"

func rejectMessageCallback() C.LWValidatorCallback {
	return C.LWValidatorCallback(C.lw_reject_message)
}

func countMessageCallback() C.LWDataHandlerCallback {
	return C.LWDataHandlerCallback(C.lw_count_message)
}

func countInvalidCallback() C.LWDataHandlerCallback {
	return C.LWDataHandlerCallback(C.lw_count_invalid)
}

func countAndDeleteCallback() C.LWDataHandlerCallback {
	return C.LWDataHandlerCallback(C.lw_count_and_delete)
}

// newCallCounters allocates the zeroed int[2] the reference callbacks use
// as userInfo. Release it with freeC.
func newCallCounters() unsafe.Pointer {
	return C.calloc(2, C.size_t(C.sizeof_int))
}

// callCounts returns the dispatched and invalid counts.
func callCounts(p unsafe.Pointer) (dispatched, invalid int) {
	c := unsafe.Slice((*C.int)(p), 2)
	return int(c[0]), int(c[1])
}
