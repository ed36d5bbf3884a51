package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/lunkwill/internal/client"
	"github.com/danmuck/lunkwill/internal/config"
	"github.com/danmuck/lunkwill/internal/logging"
	"github.com/danmuck/lunkwill/internal/native"
	"github.com/danmuck/lunkwill/internal/observability"
	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/danmuck/lunkwill/internal/server"
	"github.com/rs/zerolog"
)

const usage = `usage: lunkwillctl <command> [flags]

commands:
  serve    run the message server
  send     send one message and print the reply
  encode   print the wire encoding of a message
  decode   print the message held in hex-encoded bytes
  native   build arguments through liblunkwill
`

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "lunkwillctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:], stderr)
	case "send":
		return runSend(args[1:], stdout, stderr)
	case "encode":
		return runEncode(args[1:], stdout, stderr)
	case "decode":
		return runDecode(args[1:], stdout, stderr)
	case "native":
		return runNative(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// argList collects repeated -arg flags.
type argList []string

func (l *argList) String() string { return strings.Join(*l, ",") }

func (l *argList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func loadConfig(path string) (config.ServerConfig, error) {
	if strings.TrimSpace(path) == "" {
		return config.DefaultServerConfig(), nil
	}
	return config.LoadServerConfig(path)
}

func applyLogLevel(raw string) {
	if lvl, ok := logging.ParseLevel(raw); ok {
		zerolog.SetGlobalLevel(lvl)
	}
}

func runServe(args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	path := fs.String("config", "", "server config path (TOML)")
	listen := fs.String("listen", "", "override listen_addr")
	admin := fs.String("admin", "", "override admin_addr")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *admin != "" {
		cfg.AdminAddr = *admin
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		return err
	}

	logger := observability.InitLogger("lunkwillctl", cfg.LogLevel)
	logger.Info().
		Str("listen", cfg.ListenAddr).
		Str("admin", cfg.AdminAddr).
		Int("rules", len(cfg.Rules)).
		Msg("starting server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(cfg).Run(ctx)
}

// buildMessage turns text or hex flag values into a message.
func buildMessage(id int, raw []string, isHex bool) (*message.Message, error) {
	if id < 0 || id > 255 {
		return nil, fmt.Errorf("message id %d out of range [0, 255]", id)
	}
	m := message.New(uint8(id))
	for _, v := range raw {
		if !isHex {
			m.Add(argument.FromString(v))
			continue
		}
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", v, err)
		}
		m.Add(argument.Own(b))
	}
	return m, nil
}

func runSend(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("send", stderr)
	path := fs.String("config", "", "config path; listen_addr is the target")
	addr := fs.String("addr", "", "server address (overrides config)")
	id := fs.Int("id", 1, "message id")
	isHex := fs.Bool("hex", false, "arguments are hex encoded")
	wait := fs.Bool("wait", true, "wait for a reply")
	timeout := fs.Duration("timeout", 5*time.Second, "overall timeout")
	var raw argList
	fs.Var(&raw, "arg", "argument (repeatable)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	logging.ConfigureRuntime()

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)
	m, err := buildMessage(*id, append(raw, fs.Args()...), *isHex)
	if err != nil {
		return err
	}

	ccfg := client.DefaultConfig()
	ccfg.Address = cfg.ListenAddr
	if *addr != "" {
		ccfg.Address = *addr
	}
	ccfg.ReadTimeout = cfg.ReadTimeout
	ccfg.WriteTimeout = cfg.WriteTimeout
	ccfg.MaxConnectAttempts = 3

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c, err := client.Dial(ctx, ccfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if !*wait {
		return c.Send(ctx, m)
	}
	reply, err := c.RoundTrip(ctx, m)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, reply.Format())
	return nil
}

func runEncode(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("encode", stderr)
	id := fs.Int("id", 1, "message id")
	isHex := fs.Bool("hex", false, "arguments are hex encoded")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	m, err := buildMessage(*id, fs.Args(), *isHex)
	if err != nil {
		return err
	}
	buf, err := message.Encode(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hex.EncodeToString(buf))
	return nil
}

func runDecode(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("decode", stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	raw, err := hex.DecodeString(strings.Join(fs.Args(), ""))
	if err != nil {
		return err
	}
	for len(raw) > 0 {
		m, n, err := message.Decode(raw)
		if err != nil {
			return fmt.Errorf("%d trailing bytes: %w", len(raw), err)
		}
		fmt.Fprintln(stdout, m.Format())
		raw = raw[n:]
	}
	return nil
}

func runNative(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("native", stderr)
	path := fs.String("config", "", "config path; library_path is used")
	lib := fs.String("lib", "", "liblunkwill path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	logging.ConfigureRuntime()

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}
	libPath := cfg.LibraryPath
	if *lib != "" {
		libPath = *lib
	}
	if libPath == "" {
		return errors.New("native: no library path (use -lib or library_path)")
	}
	l, err := native.Open(libPath)
	if err != nil {
		return err
	}
	defer l.Close()
	for _, s := range fs.Args() {
		arg, err := l.ArgumentFromString(s)
		if err != nil {
			return fmt.Errorf("%q: %w", s, err)
		}
		fmt.Fprintln(stdout, arg.Format())
	}
	return nil
}
