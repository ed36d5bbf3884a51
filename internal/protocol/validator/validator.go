// Package validator holds per-message-id validation rules.
package validator

import (
	"fmt"
	"sync"

	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/rs/zerolog/log"
)

// Func reports whether m is acceptable.
type Func func(m *message.Message) bool

// ValidationError identifies the message id whose rule rejected a message.
type ValidationError struct {
	MessageID uint8
	Reason    string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validator: message_id=%d: %s", e.MessageID, e.Reason)
}

// Validator maps message ids to rules. Ids without a rule are valid.
// A Validator is safe for concurrent use.
type Validator struct {
	mu    sync.RWMutex
	rules [256]Func
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) Set(id uint8, fn Func) {
	v.mu.Lock()
	v.rules[id] = fn
	v.mu.Unlock()
}

// Require installs a rule that checks the argument shape of id.
func (v *Validator) Require(id uint8, shape message.Shape) {
	v.Set(id, func(m *message.Message) bool {
		return m.Conforms(shape)
	})
}

func (v *Validator) Clear() {
	v.mu.Lock()
	v.rules = [256]Func{}
	v.mu.Unlock()
}

func (v *Validator) Valid(m *message.Message) bool {
	return v.Check(m) == nil
}

// Check returns a ValidationError when the rule for m's id rejects it.
func (v *Validator) Check(m *message.Message) error {
	v.mu.RLock()
	fn := v.rules[m.ID()]
	v.mu.RUnlock()
	if fn == nil {
		return nil
	}
	if !fn(m) {
		log.Debug().Uint8("message_id", m.ID()).Int("arguments", m.Len()).Msg("validator.Check rejected")
		return ValidationError{MessageID: m.ID(), Reason: "rule rejected message"}
	}
	return nil
}
