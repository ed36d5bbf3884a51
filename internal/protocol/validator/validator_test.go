package validator

import (
	"errors"
	"testing"

	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/danmuck/lunkwill/internal/testutil/testlog"
)

func TestNoRuleIsValid(t *testing.T) {
	testlog.Start(t)

	v := New()
	if !v.Valid(message.New(42, argument.FromString("x"))) {
		t.Fatalf("expected message without rule to be valid")
	}
}

func TestRuleDecides(t *testing.T) {
	v := New()
	v.Set(1, func(m *message.Message) bool { return m.Len() == 2 })

	if v.Valid(message.New(1, argument.FromString("a"))) {
		t.Fatalf("expected rejection")
	}
	if !v.Valid(message.New(1, argument.FromString("a"), argument.FromString("b"))) {
		t.Fatalf("expected acceptance")
	}
	if !v.Valid(message.New(2)) {
		t.Fatalf("rule must only apply to its id")
	}
}

func TestRequireShape(t *testing.T) {
	v := New()
	v.Require(5, message.Fixed(message.AnyLength, 4))

	err := v.Check(message.New(5, argument.FromString("name"), argument.FromUint16(1)))
	var verr ValidationError
	if !errors.As(err, &verr) || verr.MessageID != 5 {
		t.Fatalf("expected ValidationError for id 5, got %v", err)
	}
	if err := v.Check(message.New(5, argument.FromString("name"), argument.FromUint32(1))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClear(t *testing.T) {
	v := New()
	v.Set(1, func(*message.Message) bool { return false })
	v.Clear()
	if !v.Valid(message.New(1)) {
		t.Fatalf("expected rules cleared")
	}
}
