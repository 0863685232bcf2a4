package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zenapp/glimpse/internal/chat"
)

// Publisher pushes a notification onto the session channel. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Relay starts streaming replies against the remote agent. The HTTP call
// itself only acknowledges stream setup; reply content arrives as push
// notifications published from the body-consuming goroutine.
type Relay struct {
	endpoint   string
	sessionID  string
	pub        Publisher
	httpClient *http.Client
}

func NewRelay(endpoint, sessionID string, pub Publisher) *Relay {
	return &Relay{
		endpoint:  endpoint,
		sessionID: sessionID,
		pub:       pub,
		// No client-wide timeout: the response body is a long-lived stream.
		httpClient: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second},
		},
	}
}

// agentContent is one part of a message in the agent's wire format. Image
// parts come first; detail is fixed to "low" to bound token cost.
type agentContent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Image  string `json:"image,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type agentMessage struct {
	Role    string         `json:"role"`
	Content []agentContent `json:"content"`
}

type agentRequest struct {
	Messages []agentMessage `json:"messages"`
	Stream   bool           `json:"stream"`
}

// streamChunk is the JSON shape of one data line in the agent's stream.
type streamChunk struct {
	Text         string          `json:"text"`
	FinishReason json.RawMessage `json:"finishReason"`
}

// StartStream sends the conversation to the agent. It returns an error only
// for setup failures (connect error, non-2xx status) before any notification
// has been published; once it returns nil, all further outcomes arrive as
// chunk/end/error notifications.
func (r *Relay) StartStream(ctx context.Context, prompt string, history []chat.HistoryEntry, imageURL string) error {
	msgs := make([]agentMessage, 0, len(history)+1)
	for _, h := range history {
		msgs = append(msgs, toAgentMessage(h.Role, h.Content, h.ImageURL))
	}
	msgs = append(msgs, toAgentMessage(chat.RoleUser, prompt, imageURL))

	payload, err := json.Marshal(agentRequest{Messages: msgs, Stream: true})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	// The body outlives the caller's context: the caller returns as soon as
	// the stream is set up, while the goroutine below keeps reading.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request to agent: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return fmt.Errorf("agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	go r.consume(resp.Body)
	return nil
}

// consume reads the stream line by line, publishing one chunk notification
// per text fragment and a terminal end or error notification.
func (r *Relay) consume(body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data := line
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(line[len("data:"):])
		}
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Some agents stream bare text lines instead of JSON objects.
			if !strings.HasPrefix(data, "{") && !strings.HasPrefix(data, "[") {
				r.publish(ChunkSubject(r.sessionID), []byte(data))
			} else {
				slog.Warn("unparseable stream line, skipping", "session", r.sessionID, "error", err)
			}
			continue
		}

		if chunk.Text != "" {
			r.publish(ChunkSubject(r.sessionID), []byte(chunk.Text))
		} else if chunk.FinishReason != nil {
			slog.Debug("stream finishing", "session", r.sessionID, "reason", string(chunk.FinishReason))
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Error("stream read failed", "session", r.sessionID, "error", err)
		r.publish(ErrorSubject(r.sessionID), []byte(fmt.Sprintf("stream read failed: %v", err)))
		return
	}

	r.publish(EndSubject(r.sessionID), nil)
}

func (r *Relay) publish(subject string, data []byte) {
	if err := r.pub.Publish(subject, data); err != nil {
		slog.Error("failed to publish notification", "subject", subject, "error", err)
	}
}

func toAgentMessage(role, text, imageURL string) agentMessage {
	var content []agentContent
	if imageURL != "" {
		content = append(content, agentContent{Type: "image", Image: imageURL, Detail: "low"})
	}
	content = append(content, agentContent{Type: "text", Text: text})
	return agentMessage{Role: role, Content: content}
}
