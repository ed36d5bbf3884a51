package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/danmuck/lunkwill/internal/protocol/message"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestServerTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := WriteTemplate(path, "server", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7400" || cfg.AdminAddr != "127.0.0.1:7401" {
		t.Fatalf("unexpected addrs: %+v", cfg)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.ReadTimeout)
	}
	if len(cfg.EchoIDs) != 2 || len(cfg.Rules) != 2 {
		t.Fatalf("unexpected echo ids/rules: %+v %+v", cfg.EchoIDs, cfg.Rules)
	}
	shape := cfg.Rules[1].Shape()
	if !message.New(2, argument.FromString("x"), argument.FromUint32(1)).Conforms(shape) {
		t.Fatalf("rule shape rejected conforming message")
	}
	if !cfg.Rules[0].Shape().Variadic {
		t.Fatalf("expected variadic rule")
	}

	if err := WriteTemplate(path, "server", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}

func TestClientTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := WriteTemplate(path, "client", true); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LibraryPath != "./liblunkwill.so" || cfg.AdminAddr != "" {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
	if cfg.MaxBufferBytes != 10240 {
		t.Fatalf("expected default buffer limit, got %d", cfg.MaxBufferBytes)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "bogus = 1\n",
		"bad duration":   "read_timeout = \"soon\"\n",
		"bad limits":     "initial_buffer_bytes = 4096\nmax_buffer_bytes = 1024\n",
		"zero length":    "[[rules]]\nid = 1\nlengths = [0]\n",
		"variadic+len":   "[[rules]]\nid = 1\nvariadic = true\nlengths = [4]\n",
		"duplicate rule": "[[rules]]\nid = 1\nvariadic = true\n[[rules]]\nid = 1\nvariadic = true\n",
		"empty name":     "name = \" \"\n",
		"echo id range":  "echo_ids = [256]\n",
	}
	for name, body := range cases {
		if _, err := LoadServerConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestUnknownTemplateKind(t *testing.T) {
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected error")
	}
}
