// Package prompt assembles the system message that seeds every conversation.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minhyannv/mcp-agent-go/pkg/tools"
)

// DefaultPolicy tells the model when to call tools and how to report their results.
const DefaultPolicy = "You are an assistant with access to email tools. " +
	"Only call tools when the user requests an action. " +
	"After a tool is called and the result is received, respond to the user in natural language " +
	"and do not call more tools unless the user asks for another action. " +
	"For example, if the tool says 'Email sent successfully. Message ID: ...', " +
	"tell the user 'Your email was sent successfully.'"

// Policy is the tool-use policy placed in the system message.
type Policy struct {
	Name        string
	Description string
	Body        string
	Path        string
}

// policyFrontMatter mirrors the optional YAML front matter of a policy file.
type policyFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{Name: "default", Body: DefaultPolicy}
}

// LoadPolicy reads a markdown policy file. Front matter is optional.
func LoadPolicy(path string) (*Policy, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	policy, err := parsePolicy(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	policy.Path = path
	return policy, nil
}

func parsePolicy(content string) (*Policy, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	policy := &Policy{}
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return nil, fmt.Errorf("unterminated YAML front matter")
		}
		var fm policyFrontMatter
		if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
			return nil, err
		}
		policy.Name = strings.TrimSpace(fm.Name)
		policy.Description = strings.TrimSpace(fm.Description)
		lines = lines[end+1:]
	}

	policy.Body = strings.TrimSpace(strings.Join(lines, "\n"))
	if policy.Body == "" {
		return nil, fmt.Errorf("policy body is empty")
	}
	return policy, nil
}

// BuildSystemPrompt renders the policy followed by a listing of the available tools.
func BuildSystemPrompt(policy *Policy, schemas []tools.Schema) string {
	if policy == nil {
		policy = Default()
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(policy.Body))

	if md := ToolsMarkdown(schemas); md != "" {
		sb.WriteString("\n\n")
		sb.WriteString(md)
	}
	return strings.TrimSpace(sb.String())
}

// ToolsMarkdown renders a markdown listing of tools.
func ToolsMarkdown(schemas []tools.Schema) string {
	if len(schemas) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n")
	for _, schema := range schemas {
		name := sanitizeMarkdown(schema.Name)
		desc := sanitizeMarkdown(schema.Description)
		if desc == "" {
			desc = "No description provided."
		}
		sb.WriteString(fmt.Sprintf("- **%s**: %s", name, desc))
		if server := sanitizeMarkdown(schema.Server); server != "" {
			sb.WriteString(fmt.Sprintf(" (server: %s)", server))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// sanitizeMarkdown keeps markdown fields single-line and trimmed.
func sanitizeMarkdown(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.TrimSpace(value)
}
