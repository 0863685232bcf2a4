package chat

import (
	"strings"
	"testing"
)

func TestNewUserMessage_UniqueIDs(t *testing.T) {
	a := NewUserMessage("hi")
	b := NewUserMessage("hi")
	if a.ID == b.ID {
		t.Error("expected distinct message IDs")
	}
	if a.Role != RoleUser {
		t.Errorf("expected role user, got %s", a.Role)
	}
}

func TestNewAssistantPlaceholder_Empty(t *testing.T) {
	m := NewAssistantPlaceholder()
	if m.Role != RoleAssistant {
		t.Errorf("expected role assistant, got %s", m.Role)
	}
	if m.Content != "" {
		t.Errorf("expected empty content, got %q", m.Content)
	}
}

func TestEmbedImage_WithText(t *testing.T) {
	got := EmbedImage("what is this?", "https://x/k1")
	if !strings.Contains(got, "what is this?") {
		t.Errorf("text missing from %q", got)
	}
	if !strings.Contains(got, "![Screenshot](https://x/k1)") {
		t.Errorf("marker missing from %q", got)
	}
}

func TestEmbedImage_NoText(t *testing.T) {
	got := EmbedImage("", "https://x/k1")
	if got != "![Screenshot](https://x/k1)" {
		t.Errorf("expected bare marker, got %q", got)
	}
}

func TestSplitImage_RoundTrip(t *testing.T) {
	content := EmbedImage("look at this", "https://x/k1")
	text, url := SplitImage(content)
	if text != "look at this" {
		t.Errorf("expected stripped text, got %q", text)
	}
	if url != "https://x/k1" {
		t.Errorf("expected url https://x/k1, got %q", url)
	}
}

func TestSplitImage_NoMarker(t *testing.T) {
	text, url := SplitImage("plain message")
	if text != "plain message" || url != "" {
		t.Errorf("expected passthrough, got %q / %q", text, url)
	}
}

func TestSplitImage_UnterminatedMarker(t *testing.T) {
	text, url := SplitImage("hello ![Screenshot](https://x/k1")
	if url != "" {
		t.Errorf("expected no url for unterminated marker, got %q", url)
	}
	if text != "hello ![Screenshot](https://x/k1" {
		t.Errorf("expected content unchanged, got %q", text)
	}
}
