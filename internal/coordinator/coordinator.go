// Package coordinator owns the conversation for one session: it drives
// outgoing turns against the streaming agent and applies the push
// notifications that fill in the reply.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zenapp/glimpse/internal/chat"
	"github.com/zenapp/glimpse/internal/storage"
)

var (
	ErrBusy         = errors.New("a reply is already streaming")
	ErrEmptyMessage = errors.New("nothing to send")
	ErrStreamSetup  = errors.New("failed to start streaming reply")
)

// errorMarker prefixes an assistant message whose stream ended in failure.
const errorMarker = "⚠ "

// StreamStarter begins a streaming reply. A nil return only acknowledges
// setup; content arrives later as push notifications.
type StreamStarter interface {
	StartStream(ctx context.Context, prompt string, history []chat.HistoryEntry, imageURL string) error
}

// Coordinator serializes every mutation of the conversation. The stream
// target doubles as the single-flight guard: while it is set, Send and Clear
// are refused.
type Coordinator struct {
	starter StreamStarter

	mu           sync.Mutex
	conv         chat.Conversation
	streamTarget string
	processing   bool

	noticeFn  func(text string)
	discardFn func()
}

func New(starter StreamStarter) *Coordinator {
	return &Coordinator{starter: starter}
}

// SetNoticeFunc registers a callback for transient user-facing notices.
func (c *Coordinator) SetNoticeFunc(fn func(text string)) {
	c.noticeFn = fn
}

// SetCaptureDiscarder registers the pipeline reset invoked by Clear.
func (c *Coordinator) SetCaptureDiscarder(fn func()) {
	c.discardFn = fn
}

// Send starts one conversation turn. It optimistically appends the user
// message and an empty assistant placeholder, then asks the agent to stream
// into the placeholder. A synchronous setup failure rolls both appends back;
// after a nil return the reply arrives via HandleChunk/HandleEnd/HandleError.
func (c *Coordinator) Send(ctx context.Context, text string, upload *storage.UploadResult) error {
	text = strings.TrimSpace(text)
	if text == "" && upload == nil {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.streamTarget != "" {
		c.mu.Unlock()
		return ErrBusy
	}

	// History snapshot excludes the turn being sent: the prompt and image
	// travel as separate arguments.
	history := c.conv.History()

	content := text
	imageURL := ""
	if upload != nil {
		imageURL = upload.URL
		content = chat.EmbedImage(text, upload.URL)
	}

	user := chat.NewUserMessage(content)
	placeholder := chat.NewAssistantPlaceholder()
	c.conv.Append(user)
	c.conv.Append(placeholder)
	c.streamTarget = placeholder.ID
	c.processing = true
	c.mu.Unlock()

	if err := c.starter.StartStream(ctx, text, history, imageURL); err != nil {
		// Setup failed before any notification could arrive: undo exactly
		// the two optimistic appends.
		c.mu.Lock()
		c.conv.Rollback(2)
		c.streamTarget = ""
		c.processing = false
		c.mu.Unlock()

		c.notice(fmt.Sprintf("could not reach the assistant: %v", err))
		return fmt.Errorf("%w: %v", ErrStreamSetup, err)
	}

	slog.Info("turn started", "target", placeholder.ID, "has_image", imageURL != "")
	return nil
}

// HandleChunk appends one fragment to the streaming reply, in delivery
// order. A chunk with no live target is dropped.
func (c *Coordinator) HandleChunk(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamTarget == "" {
		slog.Debug("stray chunk with no stream target, dropping")
		return
	}
	c.conv.AppendContent(c.streamTarget, text)
}

// HandleEnd finalizes the streaming reply and frees the coordinator for the
// next turn.
func (c *Coordinator) HandleEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamTarget = ""
	c.processing = false
}

// HandleError surfaces a terminal stream failure inline on the reply. The
// conversation is not rolled back: any partial content already streamed is
// kept below the error marker.
func (c *Coordinator) HandleError(text string) {
	c.mu.Lock()
	if c.streamTarget != "" {
		marked := errorMarker + text
		if partial, ok := c.conv.Content(c.streamTarget); ok && partial != "" {
			marked += "\n\n" + partial
		}
		c.conv.SetContent(c.streamTarget, marked)
		c.streamTarget = ""
	}
	c.processing = false
	c.mu.Unlock()

	c.notice(text)
}

// Clear empties the conversation and discards any pending capture. Refused
// while a stream is in flight: there is no way to abort the agent, and
// queuing the reset would reorder the log invisibly.
func (c *Coordinator) Clear() error {
	c.mu.Lock()
	if c.streamTarget != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.conv = chat.Conversation{}
	c.mu.Unlock()

	if c.discardFn != nil {
		c.discardFn()
	}
	return nil
}

// Messages returns a copy of the conversation log.
func (c *Coordinator) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Messages()
}

// Streaming reports whether a reply is currently in flight.
func (c *Coordinator) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

func (c *Coordinator) notice(text string) {
	if c.noticeFn != nil {
		c.noticeFn(text)
	}
}
