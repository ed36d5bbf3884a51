package message

import (
	"io"

	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/rs/zerolog/log"
)

// chunkMax is the largest chunk length. A chunk of this length continues
// the current argument; any shorter chunk ends it.
const chunkMax = 255

// EncodedLen returns the number of bytes Encode produces for m.
func EncodedLen(m *Message) int {
	n := 2
	for _, arg := range m.args {
		if arg != nil {
			n += encodedArgLen(arg.Len())
		}
	}
	return n
}

func encodedArgLen(n int) int {
	return n/chunkMax + n + 1
}

// Encode serializes m into a new buffer.
func Encode(m *Message) ([]byte, error) {
	if err := checkEncodable(m); err != nil {
		return nil, err
	}
	return AppendEncode(make([]byte, 0, EncodedLen(m)), m)
}

// checkEncodable rejects nil messages and nil or empty arguments.
func checkEncodable(m *Message) error {
	if m == nil {
		return ErrNilMessage
	}
	for i, arg := range m.args {
		if arg == nil {
			return ArgumentError{Index: i, Err: ErrNilArgument}
		}
		if arg.Len() == 0 {
			return ArgumentError{Index: i, Err: ErrEmptyArgument}
		}
	}
	return nil
}

// AppendEncode appends the encoding of m to dst.
//
// Layout: id, then each argument as length-prefixed chunks, then a zero
// byte. An argument whose length is a multiple of 255 ends with an empty
// chunk.
func AppendEncode(dst []byte, m *Message) ([]byte, error) {
	if err := checkEncodable(m); err != nil {
		return dst, err
	}
	dst = append(dst, m.id)
	for _, arg := range m.args {
		data := arg.Bytes()
		for {
			n := min(len(data), chunkMax)
			dst = append(dst, byte(n))
			dst = append(dst, data[:n]...)
			data = data[n:]
			if n < chunkMax {
				break
			}
		}
	}
	return append(dst, 0), nil
}

// WriteTo encodes m onto w.
func WriteTo(w io.Writer, m *Message) (int64, error) {
	buf, err := Encode(m)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// Decode parses the first message in buf. It returns the message and the
// number of bytes it occupied, or ErrIncomplete when buf does not yet hold
// a full message. Decoded arguments own their payloads.
func Decode(buf []byte) (*Message, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}
	m := &Message{id: buf[0]}
	var current []byte
	continuing := false
	pos := 1
	for {
		if pos >= len(buf) {
			return nil, 0, ErrIncomplete
		}
		n := int(buf[pos])
		if n == 0 && !continuing {
			pos++
			break
		}
		end := pos + 1 + n
		if end > len(buf) {
			return nil, 0, ErrIncomplete
		}
		current = append(current, buf[pos+1:end]...)
		pos = end
		if n == chunkMax {
			continuing = true
			continue
		}
		m.args = append(m.args, argument.Own(current))
		current = nil
		continuing = false
	}
	log.Debug().Uint8("message_id", m.id).Int("arguments", len(m.args)).Int("bytes", pos).Msg("message.Decode")
	return m, pos, nil
}
