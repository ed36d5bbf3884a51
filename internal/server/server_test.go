package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lunkwill/internal/client"
	"github.com/danmuck/lunkwill/internal/config"
	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/danmuck/lunkwill/internal/testutil/testlog"
)

func testConfig() config.ServerConfig {
	cfg := config.DefaultServerConfig()
	cfg.Name = "lunkwill-test"
	cfg.EchoIDs = []uint8{1}
	cfg.Rules = []config.RuleConfig{{ID: 1, Lengths: []int{message.AnyLength}}}
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return cfg
}

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("serve did not stop")
		}
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.Address = addr
	cfg.ReadTimeout = 2 * time.Second
	c, err := client.Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEchoRoundTrip(t *testing.T) {
	testlog.Start(t)
	s := New(testConfig())
	c := dial(t, startServer(t, s))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := c.RoundTrip(ctx, message.New(1, argument.FromString("hello")))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if reply.ID() != 1 || reply.Len() != 1 || reply.At(0).StringValue() != "hello" {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestInvalidAndUnroutedMessagesGetNoReply(t *testing.T) {
	testlog.Start(t)
	s := New(testConfig())
	s.Handle(2, func(m *message.Message) (*message.Message, error) {
		return message.New(2, argument.FromUint8(uint8(m.Len()))), nil
	})
	c := dial(t, startServer(t, s))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// id 1 requires exactly one argument, id 9 has no route.
	if err := c.Send(ctx, message.New(1, argument.FromString("a"), argument.FromString("b"))); err != nil {
		t.Fatalf("send invalid: %v", err)
	}
	if err := c.Send(ctx, message.New(9, argument.FromString("x"))); err != nil {
		t.Fatalf("send unrouted: %v", err)
	}
	reply, err := c.RoundTrip(ctx, message.New(2, argument.FromString("a"), argument.FromString("b")))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if reply.ID() != 2 {
		t.Fatalf("expected only the routed reply, got %s", reply)
	}
	if n, _ := reply.At(0).Uint8(); n != 2 {
		t.Fatalf("unexpected reply payload: %s", reply)
	}
}

func TestBufferOverflowClosesConnection(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.InitialBufferBytes = 64
	cfg.MaxBufferBytes = 512
	s := New(cfg)
	addr := startServer(t, s)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	junk := make([]byte, 2048)
	for i := range junk {
		junk[i] = 255
	}
	_, _ = conn.Write(junk)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected server to close the connection")
	}
}

func TestAdminHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s := New(testConfig())

	for _, path := range []string{"/health", "/ready", "/rules"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		s.HTTPRouter().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d body=%s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestAdminMetrics(t *testing.T) {
	s := New(testConfig())
	s.HTTPRouter().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "lunkwill_http_requests_total") {
		t.Fatalf("unexpected metrics response: %d", rec.Code)
	}
}

func TestAdminEncodeDecode(t *testing.T) {
	testlog.Start(t)
	s := New(testConfig())

	rec := httptest.NewRecorder()
	body := `{"id": 1, "arguments": ["hello"]}`
	s.HTTPRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages/encode", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("encode status %d body=%s", rec.Code, rec.Body.String())
	}
	var encoded struct {
		Hex    string `json:"hex"`
		Length int    `json:"length"`
		Valid  bool   `json:"valid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &encoded); err != nil {
		t.Fatalf("decode encode response: %v", err)
	}
	if encoded.Hex != hex.EncodeToString([]byte{1, 5, 'h', 'e', 'l', 'l', 'o', 0}) || !encoded.Valid {
		t.Fatalf("unexpected encode response: %+v", encoded)
	}

	rec = httptest.NewRecorder()
	body = `{"hex": "` + encoded.Hex + `ff"}`
	s.HTTPRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages/decode", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("decode status %d body=%s", rec.Code, rec.Body.String())
	}
	var decoded struct {
		ID        int `json:"id"`
		Used      int `json:"used"`
		Trailing  int `json:"trailing"`
		Arguments []struct {
			Length int    `json:"length"`
			Debug  string `json:"debug"`
		} `json:"arguments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode decode response: %v", err)
	}
	if decoded.ID != 1 || decoded.Used != 8 || decoded.Trailing != 1 || len(decoded.Arguments) != 1 {
		t.Fatalf("unexpected decode response: %+v", decoded)
	}
	if decoded.Arguments[0].Debug != "(005) <68656c6c 6f> (hello)" {
		t.Fatalf("unexpected argument debug: %q", decoded.Arguments[0].Debug)
	}
}

func TestAdminRejectsBadRequests(t *testing.T) {
	s := New(testConfig())
	cases := []struct {
		path, body string
		status     int
	}{
		{"/messages/encode", `{"arguments": ["x"]}`, http.StatusBadRequest},
		{"/messages/encode", `{"id": 300}`, http.StatusBadRequest},
		{"/messages/encode", `{"id": 1, "arguments": [""]}`, http.StatusUnprocessableEntity},
		{"/messages/encode", `{"id": 1, "arguments": ["zz"], "encoding": "hex"}`, http.StatusBadRequest},
		{"/messages/decode", `{"hex": "0105"}`, http.StatusUnprocessableEntity},
		{"/messages/decode", `{"hex": "nothex"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.HTTPRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: status %d want %d", tc.path, tc.body, rec.Code, tc.status)
		}
	}
}
