package chat

import (
	"strings"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in the conversation log. Content is mutable only for
// the assistant message currently receiving stream chunks.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage builds a user message with a fresh ID.
func NewUserMessage(content string) Message {
	return Message{ID: uuid.New().String(), Role: RoleUser, Content: content}
}

// NewAssistantPlaceholder builds the empty assistant message that a stream
// will fill in chunk by chunk.
func NewAssistantPlaceholder() Message {
	return Message{ID: uuid.New().String(), Role: RoleAssistant, Content: ""}
}

// imageMarkerPrefix is the markdown marker used to carry a screenshot URL
// inside message content.
const imageMarkerPrefix = "![Screenshot]("

// EmbedImage appends a screenshot reference to message text.
func EmbedImage(text, url string) string {
	marker := imageMarkerPrefix + url + ")"
	if text == "" {
		return marker
	}
	return text + "\n\n" + marker
}

// SplitImage separates a screenshot reference from message text. It returns
// the content unchanged with an empty URL when no marker is present.
func SplitImage(content string) (text, imageURL string) {
	i := strings.Index(content, imageMarkerPrefix)
	if i < 0 {
		return content, ""
	}
	rest := content[i+len(imageMarkerPrefix):]
	j := strings.Index(rest, ")")
	if j < 0 {
		return content, ""
	}
	text = strings.TrimSpace(content[:i] + rest[j+1:])
	return text, rest[:j]
}
