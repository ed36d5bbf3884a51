// Package client dials a lunkwill server and exchanges messages with it.
package client

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/lunkwill/internal/protocol/handler"
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired = errors.New("client: address required")
	ErrClosed          = errors.New("client: connection closed")
)

type Config struct {
	Address            string
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	Limits             handler.Limits
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		DialTimeout:        5 * time.Second,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxConnectAttempts: 5,
		Limits:             handler.DefaultLimits(),
		Backoff:            DefaultBackoffConfig(),
	}
}

// Client is one connection to a server. It is not safe for concurrent use.
type Client struct {
	cfg     Config
	conn    net.Conn
	handler *handler.DataHandler
	inbox   []*message.Message
	readBuf []byte
}

// Dial connects to cfg.Address, retrying with backoff until
// MaxConnectAttempts is reached (0 retries forever) or ctx is done.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	var attempt int
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
		if err == nil {
			return newClient(cfg, conn), nil
		}
		log.Warn().Int("attempt", attempt).Str("addr", cfg.Address).Err(err).Msg("client.Dial failed")
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		timer := time.NewTimer(NextBackoffDelay(cfg.Backoff, attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func newClient(cfg Config, conn net.Conn) *Client {
	c := &Client{cfg: cfg, conn: conn, readBuf: make([]byte, 4096)}
	c.handler = handler.New(cfg.Limits, c)
	c.handler.SetUnrecognisedMessageCallback(func(_ *handler.DataHandler, m *message.Message) {
		args := m.Arguments()
		for _, arg := range args {
			arg.SetRetainable(false)
		}
		c.inbox = append(c.inbox, message.New(m.ID(), args...))
	})
	return c
}

// Send writes m to the server.
func (c *Client) Send(ctx context.Context, m *message.Message) error {
	buf, err := message.Encode(m)
	if err != nil {
		return err
	}
	deadline := time.Time{}
	if c.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(c.cfg.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_, err = c.conn.Write(buf)
	return err
}

// Receive returns the next message from the server.
func (c *Client) Receive(ctx context.Context) (*message.Message, error) {
	for len(c.inbox) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deadline := time.Time{}
		if c.cfg.ReadTimeout > 0 {
			deadline = time.Now().Add(c.cfg.ReadTimeout)
		}
		if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
			deadline = d
		}
		_ = c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			if herr := c.handler.HandleData(c.readBuf[:n]); herr != nil {
				return nil, herr
			}
		}
		if err != nil {
			if len(c.inbox) > 0 {
				break
			}
			return nil, err
		}
	}
	m := c.inbox[0]
	c.inbox = c.inbox[1:]
	return m, nil
}

// RoundTrip sends m and waits for one reply.
func (c *Client) RoundTrip(ctx context.Context, m *message.Message) (*message.Message, error) {
	if err := c.Send(ctx, m); err != nil {
		return nil, err
	}
	return c.Receive(ctx)
}

func (c *Client) Close() error {
	if c.conn == nil {
		return ErrClosed
	}
	c.handler.Close()
	err := c.conn.Close()
	c.conn = nil
	return err
}
