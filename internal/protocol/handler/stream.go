package handler

import (
	"context"
	"errors"
	"io"
)

const readChunk = 4096

// Consume reads r until EOF, ctx cancellation, Close or a handler error,
// feeding everything read through HandleData. A clean EOF or Close returns
// nil. Cancellation is observed between reads; callers that need to unblock
// a pending read close or set a deadline on r.
func (h *DataHandler) Consume(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if herr := h.HandleData(buf[:n]); herr != nil {
				return herr
			}
			if h.closed {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
