package runner

import (
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/chatcli/internal/config"
	"github.com/efebarandurmaz/chatcli/internal/llm"
)

func TestBuildPrompt_UserOnly(t *testing.T) {
	p, err := BuildPrompt(requestConfig(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(p.Messages))
	}
	m := p.Messages[0]
	if m.Role != llm.RoleSystem || m.Name != "cli-user" || m.Content != "say hello" {
		t.Errorf("unexpected message %+v", m)
	}
}

func TestBuildPrompt_PersonaFirst(t *testing.T) {
	cfg := requestConfig(true)
	cfg.Persona = config.PersonaConfig{
		Enabled: true,
		Name:    config.DefaultPersonaName,
		Content: config.DefaultPersonaContent,
	}

	p, err := BuildPrompt(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(p.Messages))
	}
	persona := p.Messages[0]
	if persona.Role != llm.RoleAssistant || persona.Name != "Kisin" {
		t.Errorf("unexpected persona message %+v", persona)
	}
	if !strings.HasPrefix(persona.Content, "You are Kisin") {
		t.Errorf("unexpected persona content %q", persona.Content)
	}
	if p.Messages[1].Content != "say hello" {
		t.Errorf("user message must come last, got %+v", p.Messages[1])
	}
}

func TestBuildPrompt_UserRole(t *testing.T) {
	tests := []struct {
		role string
		want llm.Role
	}{
		{"", llm.RoleSystem},
		{"system", llm.RoleSystem},
		{"user", llm.RoleUser},
	}
	for _, tt := range tests {
		cfg := requestConfig(false)
		cfg.UserRole = tt.role
		p, err := BuildPrompt(cfg)
		if err != nil {
			t.Fatalf("role %q: unexpected error: %v", tt.role, err)
		}
		if got := p.Messages[0].Role; got != tt.want {
			t.Errorf("role %q: got %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestBuildPrompt_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.RequestConfig)
	}{
		{"blank prompt", func(c *config.RequestConfig) { c.Prompt = " \n" }},
		{"empty user", func(c *config.RequestConfig) { c.UserLabel = "" }},
		{"user with spaces", func(c *config.RequestConfig) { c.UserLabel = "John Doe" }},
		{"user too long", func(c *config.RequestConfig) { c.UserLabel = strings.Repeat("a", 65) }},
		{"unknown role", func(c *config.RequestConfig) { c.UserRole = "tool" }},
		{"persona without content", func(c *config.RequestConfig) {
			c.Persona = config.PersonaConfig{Enabled: true, Name: "Kisin"}
		}},
		{"persona without name", func(c *config.RequestConfig) {
			c.Persona = config.PersonaConfig{Enabled: true, Content: "x"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := requestConfig(false)
			tt.mutate(cfg)
			_, err := BuildPrompt(cfg)
			if !errors.Is(err, ErrBuild) {
				t.Fatalf("expected build error, got %v", err)
			}
		})
	}

	if _, err := BuildPrompt(nil); !errors.Is(err, ErrBuild) {
		t.Errorf("nil config: expected build error, got %v", err)
	}
}

func TestBuildPrompt_DisabledPersonaIgnoresInvalidFields(t *testing.T) {
	cfg := requestConfig(false)
	cfg.Persona = config.PersonaConfig{Enabled: false, Name: "bad name", Content: ""}
	if _, err := BuildPrompt(cfg); err != nil {
		t.Fatalf("disabled persona must not be validated: %v", err)
	}
}
