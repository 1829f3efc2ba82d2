package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/slip"
	"github.com/danderson/slip/internal/echo"
	"github.com/kr/pretty"
)

var encodeArgs struct {
	Hex          bool `flag:"hex,Print the packet as hex"`
	NoLeadingEnd bool `flag:"no-leading-end,Omit the END byte before the packet"`
}

var decodeArgs struct {
	ChunkSize int    `flag:"chunk-size,default=4096,Number of bytes to read at once"`
	Match     string `flag:"match,Only print messages matching this regexp"`
}

var serveArgs struct {
	Config       string `flag:"config,Path to a TOML server config file"`
	Network      string `flag:"network,Network to listen on (tcp, tcp4, tcp6, unix)"`
	Addr         string `flag:"addr,Address to listen on"`
	NoLeadingEnd bool   `flag:"no-leading-end,Omit the END byte before each packet"`
	LogLevel     string `flag:"log-level,Log level (trace, debug, info, warn, error, off)"`
}

var clientArgs struct {
	Network      string        `flag:"network,default=tcp,Network to connect over (tcp, tcp4, tcp6, unix)"`
	NoLeadingEnd bool          `flag:"no-leading-end,Omit the END byte before each packet"`
	Timeout      time.Duration `flag:"timeout,default=10s,Timeout for connecting and for each response"`
}

func main() {
	root := &command.C{
		Name:  "slip",
		Usage: "command args...",
		Help:  "Encode, decode and exchange SLIP (RFC 1055) framed messages.",
		Commands: []*command.C{
			{
				Name:     "encode",
				Usage:    "encode [message...]",
				Help:     "Encode a message into a SLIP packet.\n\nThe message is the space-joined arguments, or standard input if there are none.",
				SetFlags: command.Flags(flax.MustBind, &encodeArgs),
				Run:      runEncode,
			},
			{
				Name:  "decode",
				Usage: "decode [file]",
				Help: `Decode a stream of SLIP packets.

Reads packets from file, or standard input if no file is given, and
prints each decoded message. Invalid packets are reported on standard
error and skipped.

With --match, only messages matching the regexp are printed.`,
				SetFlags: command.Flags(flax.MustBind, &decodeArgs),
				Run:      runDecode,
			},
			{
				Name:  "serve",
				Usage: "serve",
				Help: `Run a SLIP echo server.

The server answers each message with its bytes reversed, so "abc"
comes back as "cba". A client ends its session by sending an empty
message, or by closing the connection.

Settings are read from --config if given, then overridden by the
other flags.`,
				SetFlags: command.Flags(flax.MustBind, &serveArgs),
				Run:      runServe,
			},
			{
				Name:  "client",
				Usage: "client address",
				Help: `Interactive client for the echo server.

Prompts for messages, sends each one, and prints the server's
response. An empty message ends the session.`,
				SetFlags: command.Flags(flax.MustBind, &clientArgs),
				Run:      command.Adapt(runClient),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func runEncode(env *command.Env) error {
	var msg []byte
	if len(env.Args) > 0 {
		msg = []byte(strings.Join(env.Args, " "))
	} else {
		bs, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}
		msg = bs
	}

	drv := slip.NewDriver(&slip.Options{OmitLeadingEnd: encodeArgs.NoLeadingEnd})
	packet := drv.Send(msg)
	if encodeArgs.Hex {
		fmt.Println(hex.EncodeToString(packet))
		return nil
	}
	if _, err := os.Stdout.Write(packet); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}

// decodedMsg is the printed form of a decoded message.
type decodedMsg struct {
	Index int
	Len   int
	Data  string
}

func runDecode(env *command.Env) error {
	var in io.Reader = os.Stdin
	switch len(env.Args) {
	case 0:
	case 1:
		f, err := os.Open(env.Args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	default:
		return env.Usagef("decode takes at most one file argument.")
	}

	var match func(string) bool
	if decodeArgs.Match != "" {
		re, err := regexp.Compile(decodeArgs.Match)
		if err != nil {
			return fmt.Errorf("invalid --match: %w", err)
		}
		match = re.MatchString
	}

	return decode(in, os.Stdout, os.Stderr, decodeArgs.ChunkSize, match)
}

// decode prints each message of the SLIP stream in to out as soon as
// it is read, skipping those rejected by match if it is not nil.
// Invalid packets are reported to errOut.
func decode(in io.Reader, out, errOut io.Writer, chunkSize int, match func(string) bool) error {
	stream := slip.NewReader(in, &slip.StreamOptions{ChunkSize: chunkSize})
	idx, bad := 0, 0
	for msg, err := range stream.Messages() {
		if slip.IsProtocolError(err) {
			fmt.Fprintf(errOut, "packet %d: %v\n", idx, err)
			idx++
			bad++
			continue
		} else if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if match == nil || match(string(msg)) {
			fmt.Fprintf(out, "%# v\n", pretty.Formatter(decodedMsg{
				Index: idx,
				Len:   len(msg),
				Data:  string(msg),
			}))
		}
		idx++
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d packets were invalid", bad, idx)
	}
	return nil
}

func runServe(env *command.Env) error {
	cfg := defaultServerConfig()
	if serveArgs.Config != "" {
		var err error
		cfg, err = loadServerConfig(serveArgs.Config)
		if err != nil {
			return err
		}
	}
	if serveArgs.Network != "" {
		cfg.Network = serveArgs.Network
	}
	if serveArgs.Addr != "" {
		cfg.Address = serveArgs.Addr
	}
	if serveArgs.NoLeadingEnd {
		cfg.Options.OmitLeadingEnd = true
	}
	if serveArgs.LogLevel != "" {
		cfg.LogLevel = serveArgs.LogLevel
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ln, err := slip.Listen(env.Context(), cfg.Network, cfg.Address, &cfg.Options)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", cfg.Network, cfg.Address, err)
	}
	fmt.Printf("SLIP server listening on %s\n", ln.Addr())

	srv := &slip.Server{
		Handler: echo.Handler(),
		Logger:  &log,
	}
	err = srv.Serve(env.Context(), ln)
	if cerr := srv.Close(); cerr != nil {
		log.Error().Err(cerr).Msg("closing server")
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("Closing down")
		return nil
	}
	return err
}

func runClient(env *command.Env, address string) error {
	ctx, cancel := context.WithTimeout(env.Context(), clientArgs.Timeout)
	defer cancel()
	fmt.Printf("Connecting to %s\n", address)
	conn, err := slip.Dial(ctx, clientArgs.Network, address, &slip.Options{OmitLeadingEnd: clientArgs.NoLeadingEnd})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Message> ")
		if !in.Scan() {
			break
		}
		line := in.Text()
		if line == "" {
			break
		}
		if err := conn.WriteMsg([]byte(line)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(clientArgs.Timeout)); err != nil {
			return err
		}
		resp, err := conn.ReadMsg()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		fmt.Printf("Response: %q\n", resp)
	}
	return in.Err()
}
