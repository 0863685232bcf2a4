package chat

// HistoryEntry is the backend-bound shape of a message: role and plain text,
// with any screenshot marker stripped out into a separate URL.
type HistoryEntry struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// Conversation is an append-only ordered log of messages. It is not safe for
// concurrent use; the coordinator serializes all access.
type Conversation struct {
	messages []Message
}

// Append adds a message to the tail of the log.
func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m)
}

// Rollback removes the n most recently appended messages. Used to undo an
// optimistic append after the remote call fails before acknowledgment.
func (c *Conversation) Rollback(n int) {
	if n > len(c.messages) {
		n = len(c.messages)
	}
	c.messages = c.messages[:len(c.messages)-n]
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the log in insertion order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Content returns the content of the message with the given ID.
func (c *Conversation) Content(id string) (string, bool) {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return c.messages[i].Content, true
		}
	}
	return "", false
}

// AppendContent appends text to the message with the given ID. It reports
// whether the message was found.
func (c *Conversation) AppendContent(id, text string) bool {
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content += text
			return true
		}
	}
	return false
}

// SetContent replaces the content of the message with the given ID.
func (c *Conversation) SetContent(id, text string) bool {
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content = text
			return true
		}
	}
	return false
}

// History maps the log to backend-bound role/content pairs, stripping
// screenshot markers into the image URL field.
func (c *Conversation) History() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(c.messages))
	for _, m := range c.messages {
		text, img := SplitImage(m.Content)
		out = append(out, HistoryEntry{Role: m.Role, Content: text, ImageURL: img})
	}
	return out
}
