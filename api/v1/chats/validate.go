package chats

import (
	"regexp"
	"strings"
)

const (
	nameMaxLen    = 100
	messageMaxLen = 4999
)

// Chat names allow word characters, whitespace and hyphens only.
var namePattern = regexp.MustCompile(`^[\w\s\-]+$`)

// ValidName reports whether a chat name is acceptable: non-blank, within
// the length cap, and free of special characters.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if len(name) > nameMaxLen {
		return false
	}
	return namePattern.MatchString(name)
}

// ValidMessage reports whether a message body is within size bounds.
func ValidMessage(text string) bool {
	return len(text) > 0 && len(text) <= messageMaxLen
}
