// Package handler turns a byte stream into dispatched protocol messages.
package handler

import (
	"errors"

	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/danmuck/lunkwill/internal/protocol/validator"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInitialCapacity = 256
	DefaultMaxCapacity     = 10240

	growStep = 1024
)

var (
	ErrBufferFull = errors.New("handler: buffer limit exceeded")
	ErrClosed     = errors.New("handler: closed")
)

// Callback receives a dispatched message. The message is released when the
// callback returns; arguments that must outlive it are marked with
// SetRetainable(false).
type Callback func(h *DataHandler, m *message.Message)

// Limits bounds the handler's receive buffer.
type Limits struct {
	InitialCapacity int
	MaxCapacity     int
}

func DefaultLimits() Limits {
	return Limits{
		InitialCapacity: DefaultInitialCapacity,
		MaxCapacity:     DefaultMaxCapacity,
	}
}

// DataHandler buffers incoming bytes and dispatches every complete message
// by id. A DataHandler is not safe for concurrent use; callbacks run on the
// goroutine that called HandleData and may call Close.
type DataHandler struct {
	limits   Limits
	buf      []byte
	userInfo any

	validator    *validator.Validator
	callbacks    [256]Callback
	unrecognised Callback
	invalid      Callback

	handling bool
	closed   bool
}

func New(limits Limits, userInfo any) *DataHandler {
	if limits.MaxCapacity <= 0 {
		limits.MaxCapacity = DefaultMaxCapacity
	}
	if limits.InitialCapacity <= 0 {
		limits.InitialCapacity = DefaultInitialCapacity
	}
	limits.InitialCapacity = min(limits.InitialCapacity, limits.MaxCapacity)
	return &DataHandler{
		limits:   limits,
		buf:      make([]byte, 0, limits.InitialCapacity),
		userInfo: userInfo,
	}
}

func (h *DataHandler) UserInfo() any {
	return h.userInfo
}

func (h *DataHandler) SetMessageCallback(id uint8, cb Callback) {
	h.callbacks[id] = cb
}

// SetUnrecognisedMessageCallback receives messages whose id has no callback.
func (h *DataHandler) SetUnrecognisedMessageCallback(cb Callback) {
	h.unrecognised = cb
}

// SetInvalidMessageCallback receives messages rejected by the validator.
func (h *DataHandler) SetInvalidMessageCallback(cb Callback) {
	h.invalid = cb
}

// ClearMessageCallbacks removes every callback, including the unrecognised
// and invalid ones.
func (h *DataHandler) ClearMessageCallbacks() {
	h.callbacks = [256]Callback{}
	h.unrecognised = nil
	h.invalid = nil
}

func (h *DataHandler) SetValidator(v *validator.Validator) {
	h.validator = v
}

// Buffered returns the number of bytes waiting for the rest of a message.
func (h *DataHandler) Buffered() int {
	return len(h.buf)
}

func (h *DataHandler) Capacity() int {
	return cap(h.buf)
}

func (h *DataHandler) Closed() bool {
	return h.closed
}

// Close discards buffered data. Called from a callback, it stops
// processing once that callback returns.
func (h *DataHandler) Close() {
	h.closed = true
	if !h.handling {
		h.buf = nil
	}
}

// HandleData appends data to the buffer and dispatches every complete
// message it now holds. Incomplete trailing bytes stay buffered.
func (h *DataHandler) HandleData(data []byte) error {
	if h.closed {
		return ErrClosed
	}
	need := len(h.buf) + len(data)
	if need > h.limits.MaxCapacity {
		log.Debug().Int("buffered", len(h.buf)).Int("incoming", len(data)).Msg("handler.HandleData buffer full")
		return ErrBufferFull
	}
	if need > cap(h.buf) {
		grown := make([]byte, len(h.buf), min((need/growStep+1)*growStep, h.limits.MaxCapacity))
		copy(grown, h.buf)
		h.buf = grown
	}
	h.buf = append(h.buf, data...)

	h.handling = true
	used := 0
	for !h.closed {
		m, n, err := message.Decode(h.buf[used:])
		if err != nil {
			break
		}
		used += n
		h.dispatch(m)
	}
	h.handling = false

	if h.closed {
		h.buf = nil
		return nil
	}
	remaining := copy(h.buf, h.buf[used:])
	h.buf = h.buf[:remaining]
	return nil
}

func (h *DataHandler) dispatch(m *message.Message) {
	defer m.Release()

	if h.validator != nil {
		if err := h.validator.Check(m); err != nil {
			log.Debug().Err(err).Msg("handler.dispatch invalid message")
			if h.invalid != nil {
				h.invalid(h, m)
			}
			return
		}
	}
	if cb := h.callbacks[m.ID()]; cb != nil {
		cb(h, m)
		return
	}
	log.Debug().Uint8("message_id", m.ID()).Msg("handler.dispatch unrecognised message")
	if h.unrecognised != nil {
		h.unrecognised(h, m)
	}
}
