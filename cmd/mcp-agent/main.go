// Package main runs the email agent against configured MCP tool servers.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"

	configpkg "github.com/minhyannv/mcp-agent-go/pkg/config"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/transcript"
)

const version = "dev"

// main is the program entry point.
func main() {
	cfg, opts, err := parseCLIConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg configpkg.Config, opts cliOptions) error {
	appLogger := loggerpkg.NewWriterLogger(os.Stderr)

	registry := newRegistry(cfg, appLogger)
	defer func() {
		if err := registry.Close(); err != nil {
			loggerpkg.Warn(appLogger, "close tool servers", map[string]any{"error": err.Error()})
		}
	}()

	a, err := newApp(ctx, cfg, appLogger, nil, registry)
	if err != nil {
		return err
	}
	defer saveTranscript(cfg.TranscriptFile, a, appLogger)

	if opts.Prompt != "" {
		reply, err := a.session.Send(ctx, opts.Prompt)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(os.Stdout, reply)
		return nil
	}

	if !opts.NoBanner {
		printBanner()
	}
	return runREPL(ctx, a.session, replOptions{
		Verbose: cfg.Verbose,
		Logger:  appLogger,
		Tools:   a.tools,
	}, os.Stdin, os.Stdout)
}

func saveTranscript(path string, a *app, logger loggerpkg.Logger) {
	if path == "" {
		return
	}
	if err := transcript.Save(path, a.session.Conversation()); err != nil {
		loggerpkg.Error(logger, "write transcript", map[string]any{"path": path, "error": err.Error()})
		return
	}
	loggerpkg.Info(logger, "transcript written", map[string]any{"path": path})
}

func printBanner() {
	tpl := "{{ .Title \"MCP AGENT\" \"\" 0 }}\nVersion: " + version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}
