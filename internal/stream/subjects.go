// Package stream owns the push-channel side of a chat session: per-session
// NATS subject naming, subscription lifecycle, and the relay that turns the
// remote agent's HTTP stream into chunk/end/error notifications.
package stream

import "fmt"

const subjectPrefix = "chat.session"

// ChunkSubject carries one text fragment to append to the streaming reply.
func ChunkSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.chunk", subjectPrefix, sessionID)
}

// EndSubject signals a successful end of stream. No payload.
func EndSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.end", subjectPrefix, sessionID)
}

// ErrorSubject carries a terminal failure message for the stream.
func ErrorSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.error", subjectPrefix, sessionID)
}

// NoticeSubject carries transient user-facing notices (toasts).
func NoticeSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.notice", subjectPrefix, sessionID)
}
