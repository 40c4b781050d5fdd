package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"

	configpkg "github.com/minhyannv/mcp-agent-go/pkg/config"
)

// cliOptions are settings that only make sense on the command line.
type cliOptions struct {
	ConfigPath string
	Prompt     string
	NoBanner   bool
}

// parseCLIConfig loads .env, the optional config file and flags, in increasing precedence.
func parseCLIConfig(args []string, stderr io.Writer) (configpkg.Config, cliOptions, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("mcp-agent", flag.ContinueOnError)
	if stderr != nil {
		fs.SetOutput(stderr)
	}

	defaults := configpkg.DefaultConfig()
	var opts cliOptions
	var servers stringSliceFlag
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a YAML/JSON/TOML config file")
	fs.StringVar(&opts.Prompt, "prompt", "", "Run a single request and exit instead of starting the REPL")
	fs.BoolVar(&opts.NoBanner, "no_banner", false, "Do not print the startup banner")
	maxTurns := fs.Int("max_turns", defaults.MaxTurns, "Max model calls per request")
	verbose := fs.Bool("verbose", defaults.Verbose, "Verbose loop and tool-call logging")
	policyFile := fs.String("policy", "", "Markdown file replacing the default tool-use policy")
	transcriptFile := fs.String("transcript", "", "Write the conversation as YAML to this file on exit")
	toolConcurrency := fs.Int("tool_concurrency", defaults.ToolConcurrency, "Tool calls of one response run at once")
	fs.Var(&servers, "server", "Stdio MCP server as name=command [args...]. Repeat for several servers")
	if err := fs.Parse(args); err != nil {
		return configpkg.Config{}, cliOptions{}, err
	}
	if fs.NArg() > 0 && opts.Prompt == "" {
		opts.Prompt = strings.Join(fs.Args(), " ")
	}

	cfg, err := configpkg.Load(opts.ConfigPath)
	if err != nil {
		return configpkg.Config{}, cliOptions{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max_turns":
			cfg.MaxTurns = *maxTurns
		case "verbose":
			cfg.Verbose = *verbose
		case "policy":
			cfg.PolicyFile = *policyFile
		case "transcript":
			cfg.TranscriptFile = *transcriptFile
		case "tool_concurrency":
			cfg.ToolConcurrency = *toolConcurrency
		}
	})

	if len(servers) > 0 {
		cfg.Servers = make(map[string]configpkg.ServerConfig, len(servers))
		for _, def := range servers.values() {
			name, server, err := parseServerFlag(def)
			if err != nil {
				return configpkg.Config{}, cliOptions{}, err
			}
			cfg.Servers[name] = server
		}
	}

	cfg = configpkg.Normalize(cfg)
	if err := configpkg.Validate(cfg); err != nil {
		return configpkg.Config{}, cliOptions{}, err
	}
	return cfg, opts, nil
}

// parseServerFlag splits "name=command arg..." into a stdio server entry.
func parseServerFlag(value string) (string, configpkg.ServerConfig, error) {
	name, command, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	fields := strings.Fields(command)
	if !ok || name == "" || len(fields) == 0 {
		return "", configpkg.ServerConfig{}, fmt.Errorf("invalid -server %q, want name=command [args...]", value)
	}
	return name, configpkg.ServerConfig{
		Transport: configpkg.TransportStdio,
		Command:   fields[0],
		Args:      fields[1:],
	}, nil
}

// stringSliceFlag supports repeatable -server flags.
type stringSliceFlag []string

func (f *stringSliceFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ";")
}

func (f *stringSliceFlag) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty server definition")
	}
	*f = append(*f, value)
	return nil
}

func (f stringSliceFlag) values() []string {
	out := make([]string, len(f))
	copy(out, f)
	return out
}
