package main

/*
#include "lunkwill.h"
*/
import "C"

import (
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/danmuck/lunkwill/internal/protocol/validator"
)

func lookupValidator(v C.LWValidator) (*validator.Validator, bool) {
	return getHandleTyped[*validator.Validator](uint64(v._h))
}

//export LWValidatorCreate
func LWValidatorCreate() C.LWValidator {
	return C.LWValidator{_h: C.uint64_t(newHandle(validator.New()))}
}

//export LWValidatorDelete
func LWValidatorDelete(v C.LWValidator) {
	freeHandle(uint64(v._h))
}

// LWValidatorSetMessageValidationCallback installs cb for id. The message
// handle passed to cb is only valid during the call.
//
//export LWValidatorSetMessageValidationCallback
func LWValidatorSetMessageValidationCallback(v C.LWValidator, id C.uint8_t, cb C.LWValidatorCallback) {
	val, ok := lookupValidator(v)
	if !ok {
		return
	}
	if cb == nil {
		val.Set(uint8(id), nil)
		return
	}
	val.Set(uint8(id), func(m *message.Message) bool {
		h := newHandle(m)
		defer freeHandle(h)
		return bool(C.lw_invoke_validator_callback(cb, messageHandle(h)))
	})
}

// LWValidatorRequire installs a shape rule for id; see LWMessageIsValid2.
//
//export LWValidatorRequire
func LWValidatorRequire(v C.LWValidator, id C.uint8_t, count C.int32_t, lengths *C.int32_t) C.bool {
	val, ok := lookupValidator(v)
	if !ok {
		return C.bool(false)
	}
	shape, ok := shapeOf(count, lengths)
	if !ok {
		return C.bool(false)
	}
	val.Require(uint8(id), shape)
	return C.bool(true)
}

//export LWValidatorClearMessageValidationCallbacks
func LWValidatorClearMessageValidationCallbacks(v C.LWValidator) {
	if val, ok := lookupValidator(v); ok {
		val.Clear()
	}
}

//export LWValidatorMessageIsValid
func LWValidatorMessageIsValid(v C.LWValidator, msg C.LWMessage) C.bool {
	val, ok := lookupValidator(v)
	if !ok {
		return C.bool(false)
	}
	m, ok := lookupMessage(msg)
	if !ok {
		return C.bool(false)
	}
	return C.bool(val.Valid(m))
}
