package runner

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/efebarandurmaz/chatcli/internal/config"
	"github.com/efebarandurmaz/chatcli/internal/llm"
)

// namePattern is what the chat API accepts as a message author name.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// BuildPrompt assembles the ordered message list for cfg: the persona message
// first when enabled, then the user's prompt. Errors are of kind KindBuild.
func BuildPrompt(cfg *config.RequestConfig) (*llm.Prompt, error) {
	if cfg == nil {
		return nil, newError(KindBuild, "build prompt", errors.New("nil request config"))
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		return nil, newError(KindBuild, "build prompt", errors.New("prompt is empty"))
	}
	if !namePattern.MatchString(cfg.UserLabel) {
		return nil, newError(KindBuild, "build prompt",
			fmt.Errorf("user %q must be 1-64 letters, digits, '_' or '-'", cfg.UserLabel))
	}

	role := llm.RoleSystem
	if cfg.UserRole != "" {
		r, err := llm.ParseRole(cfg.UserRole)
		if err != nil {
			return nil, newError(KindBuild, "build prompt", err)
		}
		role = r
	}

	prompt := &llm.Prompt{Messages: make([]llm.Message, 0, 2)}

	if cfg.Persona.Enabled {
		if strings.TrimSpace(cfg.Persona.Content) == "" {
			return nil, newError(KindBuild, "build prompt", errors.New("persona enabled without content"))
		}
		if !namePattern.MatchString(cfg.Persona.Name) {
			return nil, newError(KindBuild, "build prompt",
				fmt.Errorf("persona name %q must be 1-64 letters, digits, '_' or '-'", cfg.Persona.Name))
		}
		prompt.Messages = append(prompt.Messages, llm.Message{
			Role:    llm.RoleAssistant,
			Name:    cfg.Persona.Name,
			Content: cfg.Persona.Content,
		})
	}

	prompt.Messages = append(prompt.Messages, llm.Message{
		Role:    role,
		Name:    cfg.UserLabel,
		Content: cfg.Prompt,
	})
	return prompt, nil
}
