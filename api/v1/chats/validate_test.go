package chats

import (
	"strings"
	"testing"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "build logs", true},
		{"hyphenated", "gpu-node-2", true},
		{"underscore", "my_chat", true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"too long", strings.Repeat("a", 101), false},
		{"max length", strings.Repeat("a", 100), true},
		{"special chars", "chat<script>", false},
		{"punctuation", "what?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidName(tt.input); got != tt.want {
				t.Errorf("ValidName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"empty", "", false},
		{"single char", "x", true},
		{"max size", strings.Repeat("a", 4999), true},
		{"over max", strings.Repeat("a", 5000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidMessage(tt.input); got != tt.want {
				t.Errorf("ValidMessage(len %d) = %v, want %v", len(tt.input), got, tt.want)
			}
		})
	}
}
