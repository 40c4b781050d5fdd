// Package mailserver is an MCP tool server exposing send_email.
package mailserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
)

const (
	ToolName = "send_email"

	// SuccessPrefix starts the text returned for a delivered message.
	SuccessPrefix = "Email sent successfully. Message ID: "
)

// Option configures the server.
type Option func(*handler)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(h *handler) {
		h.logger = loggerpkg.OrNop(l)
	}
}

// WithVerbose enables per-call debug logging.
func WithVerbose(v bool) Option {
	return func(h *handler) {
		h.verbose = v
	}
}

// WithClock overrides the time source for the Date header.
func WithClock(now func() time.Time) Option {
	return func(h *handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithIDGenerator overrides how message IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(h *handler) {
		if newID != nil {
			h.newID = newID
		}
	}
}

type handler struct {
	sender Sender
	from   string

	now     func() time.Time
	newID   func() string
	logger  loggerpkg.Logger
	verbose bool
}

// sendEmailArgs are the arguments of send_email.
type sendEmailArgs struct {
	To      []string `mapstructure:"to"`
	Subject string   `mapstructure:"subject"`
	Body    string   `mapstructure:"body"`
	Cc      []string `mapstructure:"cc"`
	Bcc     []string `mapstructure:"bcc"`
}

// NewServer builds an MCP server whose send_email tool delivers through sender
// using from as the envelope and header sender.
func NewServer(sender Sender, from string, opts ...Option) (*mcpsdk.Server, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("from address %q: %w", from, err)
	}

	h := &handler{
		sender: sender,
		from:   addr.Address,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: loggerpkg.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "mail-server", Version: "dev"}, nil)
	server.AddTool(sendEmailTool(), h.sendEmail)
	return server, nil
}

func sendEmailTool() *mcpsdk.Tool {
	// Address fields take one comma separated string or a list of addresses.
	addressList := func(desc string, nullable bool) map[string]any {
		types := []any{"string", "array"}
		if nullable {
			types = append(types, "null")
		}
		return map[string]any{
			"type":        types,
			"items":       map[string]any{"type": "string"},
			"description": desc,
		}
	}
	return &mcpsdk.Tool{
		Name:        ToolName,
		Description: "Send a plain-text email. Returns the message ID on success.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      addressList("Recipient addresses, e.g. \"Doe, John\" <j@example.com>, x@example.com.", false),
				"subject": map[string]any{"type": "string", "description": "Subject line."},
				"body":    map[string]any{"type": "string", "description": "Plain-text message body."},
				"cc":      addressList("Optional carbon-copy recipients.", true),
				"bcc":     addressList("Optional blind carbon-copy recipients.", true),
			},
			"required": []any{"to", "subject", "body"},
		},
	}
}

func (h *handler) sendEmail(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var raw map[string]any
	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &raw); err != nil {
			return errorResult(fmt.Errorf("arguments must be a JSON object: %w", err)), nil
		}
	}

	msg, err := h.buildMessage(raw)
	if err != nil {
		loggerpkg.Warn(h.logger, "send_email rejected", map[string]any{"error": err.Error()})
		return errorResult(err), nil
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		loggerpkg.Error(h.logger, "send_email failed", map[string]any{"id": msg.ID, "error": err.Error()})
		return errorResult(fmt.Errorf("failed to send email: %w", err)), nil
	}

	loggerpkg.Info(h.logger, "email sent", map[string]any{
		"id":         msg.ID,
		"recipients": len(msg.Recipients()),
	})
	loggerpkg.Debug(h.verbose, h.logger, "email details", map[string]any{
		"to":      msg.To,
		"cc":      msg.Cc,
		"subject": msg.Subject,
	})
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: SuccessPrefix + msg.ID}},
	}, nil
}

func (h *handler) buildMessage(raw map[string]any) (Message, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return Message{}, err
	}

	to, err := parseAddresses("to", args.To)
	if err != nil {
		return Message{}, err
	}
	if len(to) == 0 {
		return Message{}, errors.New("to: at least one recipient is required")
	}
	cc, err := parseAddresses("cc", args.Cc)
	if err != nil {
		return Message{}, err
	}
	bcc, err := parseAddresses("bcc", args.Bcc)
	if err != nil {
		return Message{}, err
	}
	subject := strings.TrimSpace(args.Subject)
	if subject == "" {
		return Message{}, errors.New("subject is required")
	}
	if strings.ContainsAny(subject, "\r\n") {
		return Message{}, errors.New("subject must be a single line")
	}
	if strings.TrimSpace(args.Body) == "" {
		return Message{}, errors.New("body is required")
	}

	return Message{
		ID:      h.newID(),
		From:    h.from,
		To:      to,
		Cc:      cc,
		Bcc:     bcc,
		Subject: subject,
		Body:    args.Body,
		Date:    h.now(),
	}, nil
}

// decodeArgs accepts address fields as a single string or a list of strings.
// A single string becomes a one-element list; splitting it into addresses is
// left to the RFC 5322 parser so quoted names may contain commas.
func decodeArgs(raw map[string]any) (sendEmailArgs, error) {
	var args sendEmailArgs
	if len(raw) == 0 {
		return args, errors.New("to, subject and body are required")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &args,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return args, err
	}
	if err := decoder.Decode(raw); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}
