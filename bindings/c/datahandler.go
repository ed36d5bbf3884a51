package main

/*
#include "lunkwill.h"
*/
import "C"

import (
	"unsafe"

	"github.com/danmuck/lunkwill/internal/protocol/handler"
	"github.com/danmuck/lunkwill/internal/protocol/message"
)

// dataHandler is the state behind an LWDataHandler handle. A handler must
// not be used from more than one thread at a time.
type dataHandler struct {
	handle   uint64
	h        *handler.DataHandler
	userInfo unsafe.Pointer
}

func lookupDataHandler(h C.LWDataHandler) (*dataHandler, bool) {
	return getHandleTyped[*dataHandler](uint64(h._h))
}

// wrap adapts a C callback. The message handle is only valid during the
// call.
func (d *dataHandler) wrap(cb C.LWDataHandlerCallback) handler.Callback {
	if cb == nil {
		return nil
	}
	return func(_ *handler.DataHandler, m *message.Message) {
		mh := newHandle(m)
		defer freeHandle(mh)
		C.lw_invoke_handler_callback(cb, C.LWDataHandler{_h: C.uint64_t(d.handle)}, messageHandle(mh), d.userInfo)
	}
}

//export LWDataHandlerCreate
func LWDataHandlerCreate(userInfo unsafe.Pointer) C.LWDataHandler {
	d := &dataHandler{userInfo: userInfo}
	d.h = handler.New(handler.DefaultLimits(), nil)
	d.handle = newHandle(d)
	return C.LWDataHandler{_h: C.uint64_t(d.handle)}
}

// LWDataHandlerDelete releases the handler. Called from a callback, the
// remaining buffered messages are dropped once the callback returns.
//
//export LWDataHandlerDelete
func LWDataHandlerDelete(h C.LWDataHandler) {
	if d, ok := freeHandleTyped[*dataHandler](uint64(h._h)); ok {
		d.h.Close()
	}
}

//export LWDataHandlerGetUserInfo
func LWDataHandlerGetUserInfo(h C.LWDataHandler) unsafe.Pointer {
	d, ok := lookupDataHandler(h)
	if !ok {
		return nil
	}
	return d.userInfo
}

//export LWDataHandlerSetMessageCallback
func LWDataHandlerSetMessageCallback(h C.LWDataHandler, id C.uint8_t, cb C.LWDataHandlerCallback) {
	if d, ok := lookupDataHandler(h); ok {
		d.h.SetMessageCallback(uint8(id), d.wrap(cb))
	}
}

//export LWDataHandlerSetUnrecognisedMessageCallback
func LWDataHandlerSetUnrecognisedMessageCallback(h C.LWDataHandler, cb C.LWDataHandlerCallback) {
	if d, ok := lookupDataHandler(h); ok {
		d.h.SetUnrecognisedMessageCallback(d.wrap(cb))
	}
}

//export LWDataHandlerSetInvalidMessageCallback
func LWDataHandlerSetInvalidMessageCallback(h C.LWDataHandler, cb C.LWDataHandlerCallback) {
	if d, ok := lookupDataHandler(h); ok {
		d.h.SetInvalidMessageCallback(d.wrap(cb))
	}
}

//export LWDataHandlerClearMessageCallbacks
func LWDataHandlerClearMessageCallbacks(h C.LWDataHandler) {
	if d, ok := lookupDataHandler(h); ok {
		d.h.ClearMessageCallbacks()
	}
}

// LWDataHandlerSetValidator attaches v, or detaches the current validator
// when v is the zero handle.
//
//export LWDataHandlerSetValidator
func LWDataHandlerSetValidator(h C.LWDataHandler, v C.LWValidator) {
	d, ok := lookupDataHandler(h)
	if !ok {
		return
	}
	val, _ := lookupValidator(v)
	d.h.SetValidator(val)
}

// LWDataHandlerHandleData feeds bytes to the handler and dispatches every
// complete message. It fails when the buffer limit would be exceeded or the
// handler was deleted.
//
//export LWDataHandlerHandleData
func LWDataHandlerHandleData(h C.LWDataHandler, data unsafe.Pointer, length C.size_t) C.bool {
	d, ok := lookupDataHandler(h)
	if !ok {
		return C.bool(false)
	}
	if length > 0 && data == nil {
		return C.bool(false)
	}
	var buf []byte
	if length > 0 {
		buf = unsafe.Slice((*byte)(data), int(length))
	}
	return C.bool(d.h.HandleData(buf) == nil)
}
