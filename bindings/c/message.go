package main

/*
#include "lunkwill.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/danmuck/lunkwill/internal/protocol/message"
)

func messageHandle(h uint64) C.LWMessage {
	return C.LWMessage{_h: C.uint64_t(h)}
}

func lookupMessage(m C.LWMessage) (*message.Message, bool) {
	return getHandleTyped[*message.Message](uint64(m._h))
}

// LWMessageCreate2 copies count records into a new message. The caller
// keeps ownership of the records.
//
//export LWMessageCreate2
func LWMessageCreate2(id C.uint8_t, count C.size_t, args **C.LWArgument) C.LWMessage {
	if count > 0 && args == nil {
		return messageHandle(0)
	}
	m := message.New(uint8(id))
	if count > 0 {
		for _, arg := range unsafe.Slice(args, int(count)) {
			if arg == nil {
				return messageHandle(0)
			}
			m.Add(view(arg).Argument())
		}
	}
	return messageHandle(newHandle(m))
}

//export LWMessageAddArgument
func LWMessageAddArgument(msg C.LWMessage, arg *C.LWArgument) C.bool {
	m, ok := lookupMessage(msg)
	if !ok || arg == nil {
		return C.bool(false)
	}
	m.Add(view(arg).Argument())
	return C.bool(true)
}

//export LWMessageDelete
func LWMessageDelete(msg C.LWMessage) {
	if m, ok := freeHandleTyped[*message.Message](uint64(msg._h)); ok {
		m.Release()
	}
}

// LWMessageSerialize stores a malloc buffer holding the encoded message in
// *out, released with LWFree.
//
//export LWMessageSerialize
func LWMessageSerialize(msg C.LWMessage, length *C.size_t, out *unsafe.Pointer) C.bool {
	m, ok := lookupMessage(msg)
	if !ok || length == nil || out == nil {
		return C.bool(false)
	}
	buf, err := message.Encode(m)
	if err != nil {
		return C.bool(false)
	}
	data, ok := cBytes(buf)
	if !ok {
		return C.bool(false)
	}
	*length = C.size_t(len(buf))
	*out = data
	return C.bool(true)
}

// LWMessageDeserialize decodes the first message in data. It returns the
// zero handle when data does not hold a complete message.
//
//export LWMessageDeserialize
func LWMessageDeserialize(data unsafe.Pointer, length C.size_t, used *C.size_t) C.LWMessage {
	if data == nil || length == 0 {
		return messageHandle(0)
	}
	m, n, err := message.Decode(unsafe.Slice((*byte)(data), int(length)))
	if err != nil {
		return messageHandle(0)
	}
	if used != nil {
		*used = C.size_t(n)
	}
	return messageHandle(newHandle(m))
}

// LWMessageIsValid2 checks the message against count expected argument
// lengths, where -1 accepts any length. A negative count accepts any
// number of arguments.
//
//export LWMessageIsValid2
func LWMessageIsValid2(msg C.LWMessage, count C.int32_t, lengths *C.int32_t) C.bool {
	m, ok := lookupMessage(msg)
	if !ok {
		return C.bool(false)
	}
	shape, ok := shapeOf(count, lengths)
	if !ok {
		return C.bool(false)
	}
	return C.bool(m.Conforms(shape))
}

func shapeOf(count C.int32_t, lengths *C.int32_t) (message.Shape, bool) {
	if count < 0 {
		return message.Variadic(), true
	}
	if count > 0 && lengths == nil {
		return message.Shape{}, false
	}
	want := make([]int, int(count))
	if count > 0 {
		for i, l := range unsafe.Slice(lengths, int(count)) {
			want[i] = int(l)
		}
	}
	return message.Fixed(want...), true
}

//export LWMessageGetMessageID
func LWMessageGetMessageID(msg C.LWMessage) C.uint8_t {
	m, ok := lookupMessage(msg)
	if !ok {
		return 0
	}
	return C.uint8_t(m.ID())
}

//export LWMessageGetArgumentCount
func LWMessageGetArgumentCount(msg C.LWMessage) C.size_t {
	m, ok := lookupMessage(msg)
	if !ok {
		return 0
	}
	return C.size_t(m.Len())
}

// LWMessageGetArgumentAtIndex returns a copy of the argument, released with
// LWArgumentDelete.
//
//export LWMessageGetArgumentAtIndex
func LWMessageGetArgumentAtIndex(msg C.LWMessage, index C.size_t) *C.LWArgument {
	m, ok := lookupMessage(msg)
	if !ok || int(index) >= m.Len() {
		return nil
	}
	return recordFromArgument(m.At(int(index)))
}

//export LWMessagePrint
func LWMessagePrint(msg C.LWMessage) {
	if m, ok := lookupMessage(msg); ok {
		fmt.Println(m.Format())
	}
}

//export LWMessageGetStringRepresentation
func LWMessageGetStringRepresentation(msg C.LWMessage, dst *C.char, length C.size_t) {
	if m, ok := lookupMessage(msg); ok {
		fillString(dst, length, m.Format())
	}
}
