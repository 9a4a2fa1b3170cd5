package content

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	policy    = bluemonday.UGCPolicy()
	textOnly  = bluemonday.StrictPolicy()
	nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._ -]+$`)

	markdown = goldmark.New()
)

// Sanitize strips all markup from inbound text. Message text arrives
// from the backend unescaped, so everything appended to a transcript
// goes through here first.
func Sanitize(input string) string {
	return textOnly.Sanitize(input)
}

// RenderMarkdown renders message text as markdown and sanitizes the
// resulting HTML with a UGC policy. Used for display surfaces that can
// show rich text, like notification bodies.
func RenderMarkdown(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// ValidateRoomName checks that a room title contains only allowed
// characters and is not empty.
func ValidateRoomName(room string) error {
	if strings.TrimSpace(room) == "" {
		return errors.New("room name cannot be empty")
	}
	if !nameRegex.MatchString(room) {
		return errors.New("room name contains invalid characters (allowed: alphanumeric, dot, dash, underscore, space)")
	}
	return nil
}

// ValidateUsername checks that a username contains only allowed
// characters (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(userName string) error {
	if userName == "" {
		return errors.New("username cannot be empty")
	}
	if strings.ContainsRune(userName, ' ') || !nameRegex.MatchString(userName) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
