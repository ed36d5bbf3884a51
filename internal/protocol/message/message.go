// Package message implements protocol messages and their wire codec.
package message

import (
	"fmt"
	"strings"

	"github.com/danmuck/lunkwill/internal/protocol/argument"
)

// Message is an 8-bit message id with an ordered list of arguments.
type Message struct {
	id   uint8
	args []*argument.Argument
}

func New(id uint8, args ...*argument.Argument) *Message {
	m := &Message{id: id}
	if len(args) > 0 {
		m.args = make([]*argument.Argument, len(args))
		copy(m.args, args)
	}
	return m
}

func (m *Message) ID() uint8 {
	return m.id
}

func (m *Message) Len() int {
	return len(m.args)
}

// At returns the argument at index i. It panics when i is out of range.
func (m *Message) At(i int) *argument.Argument {
	return m.args[i]
}

// Arguments returns a copy of the argument list.
func (m *Message) Arguments() []*argument.Argument {
	out := make([]*argument.Argument, len(m.args))
	copy(out, m.args)
	return out
}

func (m *Message) Add(arg *argument.Argument) {
	m.args = append(m.args, arg)
}

// Release releases every retainable argument. Arguments marked as not
// retainable stay usable by whoever holds them.
func (m *Message) Release() {
	for _, arg := range m.args {
		if arg != nil && arg.Retainable() {
			arg.Release()
		}
	}
	m.args = nil
}

// Format renders the debug representation of m.
func (m *Message) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message{id = %d", m.id)
	if len(m.args) > 0 {
		b.WriteString(", arguments = (\n")
		for i, arg := range m.args {
			if arg == nil {
				fmt.Fprintf(&b, "\t%d: <nil>\n", i)
				continue
			}
			fmt.Fprintf(&b, "\t%d: %s\n", i, arg.Format())
		}
		b.WriteString(")")
	}
	b.WriteString("}")
	return b.String()
}

func (m *Message) String() string {
	return m.Format()
}
