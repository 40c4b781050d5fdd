// Package main serves the send_email tool over stdio for the MCP agent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/mailserver"
)

type serverOptions struct {
	CredsFile string
	OutboxDir string
	From      string
	Verbose   bool
}

func parseFlags(args []string, stderr io.Writer) (serverOptions, error) {
	fs := flag.NewFlagSet("mail-server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts serverOptions
	fs.StringVar(&opts.CredsFile, "creds-file-path", "", "dotenv file with SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM")
	fs.StringVar(&opts.OutboxDir, "outbox-dir", "", "Write messages as .eml files to this directory instead of sending them")
	fs.StringVar(&opts.From, "from", "", "Sender address (defaults to SMTP_FROM, or agent@localhost with -outbox-dir)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Log message details")
	if err := fs.Parse(args); err != nil {
		return serverOptions{}, err
	}
	opts.CredsFile = strings.TrimSpace(opts.CredsFile)
	opts.OutboxDir = strings.TrimSpace(opts.OutboxDir)
	opts.From = strings.TrimSpace(opts.From)
	if opts.CredsFile == "" && opts.OutboxDir == "" {
		return serverOptions{}, errors.New("one of -creds-file-path or -outbox-dir is required")
	}
	return opts, nil
}

// newSender prefers the outbox when both are configured.
func newSender(opts serverOptions) (mailserver.Sender, string, error) {
	if opts.OutboxDir != "" {
		from := opts.From
		if from == "" {
			from = "agent@localhost"
		}
		return mailserver.NewOutboxSender(opts.OutboxDir), from, nil
	}
	creds, err := mailserver.LoadCredentials(opts.CredsFile)
	if err != nil {
		return nil, "", err
	}
	from := opts.From
	if from == "" {
		from = creds.From
	}
	return mailserver.NewSMTPSender(creds), from, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// stdout carries the protocol; logs go to stderr.
	logger := loggerpkg.Named(loggerpkg.NewWriterLogger(os.Stderr), "mail-server")

	sender, from, err := newSender(opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	server, err := mailserver.NewServer(sender, from,
		mailserver.WithLogger(logger),
		mailserver.WithVerbose(opts.Verbose),
	)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loggerpkg.Debug(opts.Verbose, logger, "serving over stdio", map[string]any{"from": from, "outbox": opts.OutboxDir})
	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
