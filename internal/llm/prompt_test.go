package llm

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"system", RoleSystem, false},
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"", "", true},
		{"System", "", true},
		{"tool", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStreamEventHasContent(t *testing.T) {
	tests := []struct {
		name string
		ev   StreamEvent
		want bool
	}{
		{"no choices", StreamEvent{}, false},
		{"empty delta", StreamEvent{Choices: []ChoiceDelta{{Index: 0}}}, false},
		{"one fragment", StreamEvent{Choices: []ChoiceDelta{{Content: "Hel"}}}, true},
		{"second choice only", StreamEvent{Choices: []ChoiceDelta{{}, {Index: 1, Content: "x"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.HasContent(); got != tt.want {
				t.Errorf("HasContent() = %v, want %v", got, tt.want)
			}
		})
	}
}
