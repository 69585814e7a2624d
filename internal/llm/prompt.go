package llm

import "fmt"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a configuration string onto a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q (want system, user or assistant)", s)
}

// Message is a single role-tagged message sent to the chat API.
type Message struct {
	Role    Role   `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Prompt is the ordered message list of one completion call.
type Prompt struct {
	Messages []Message `json:"messages"`
}
