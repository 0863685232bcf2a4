// Package capture drives the permission → capture → preview → upload
// pipeline for a single screenshot, one flight at a time.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/zenapp/glimpse/internal/storage"
)

type Status int

const (
	StatusIdle Status = iota
	StatusCheckingPermission
	StatusCapturing
	StatusPreviewing
	StatusUploading
	StatusReady
	StatusConsumed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCheckingPermission:
		return "checking_permission"
	case StatusCapturing:
		return "capturing"
	case StatusPreviewing:
		return "previewing"
	case StatusUploading:
		return "uploading"
	case StatusReady:
		return "ready"
	case StatusConsumed:
		return "consumed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrPermissionDenied = errors.New("screen capture permission denied")
	ErrCaptureFailed    = errors.New("screen capture failed")
	ErrUploadFailed     = errors.New("screenshot upload failed")
	ErrInvalidImage     = errors.New("captured file is not a valid image")
	ErrInProgress       = errors.New("a capture is already in progress")
)

// Capturer is the external screen-capture collaborator.
type Capturer interface {
	CheckPermission(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
	Capture(ctx context.Context) (string, error)
}

// Previewer produces a bounded-size display representation of a screenshot.
// It is a black-box byte transform; failures are best-effort, never fatal.
type Previewer interface {
	Preview(data []byte) ([]byte, error)
}

// Session is the ephemeral state of the current capture flight. It never
// enters the conversation; only its finished UploadResult is handed out.
type Session struct {
	Status    Status
	LocalPath string
	Preview   []byte
	Upload    *storage.UploadResult
}

// Pipeline is the single-flight capture/upload state machine. Run drives a
// full flight; a Run issued while another flight is active is rejected
// without touching state.
type Pipeline struct {
	capturer  Capturer
	uploader  storage.Uploader
	previewer Previewer

	mu   sync.Mutex
	sess Session
}

func New(c Capturer, u storage.Uploader, p Previewer) *Pipeline {
	return &Pipeline{capturer: c, uploader: u, previewer: p}
}

// Run executes one capture flight to completion. On success the session is
// left in Ready with an UploadResult pending attachment; on any failure all
// ephemeral state is cleared and the pipeline returns to Idle.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.sess.Status != StatusIdle && p.sess.Status != StatusReady {
		p.mu.Unlock()
		return ErrInProgress
	}
	// Starting over from Ready discards the previous, unconsumed upload.
	p.clearLocked()
	p.sess.Status = StatusCheckingPermission
	p.mu.Unlock()

	granted, err := p.capturer.CheckPermission(ctx)
	if err != nil {
		p.fail()
		return fmt.Errorf("check permission: %w", err)
	}
	if !granted {
		granted, err = p.capturer.RequestPermission(ctx)
		if err != nil {
			p.fail()
			return fmt.Errorf("request permission: %w", err)
		}
		if !granted {
			p.fail()
			return ErrPermissionDenied
		}
	}

	p.setStatus(StatusCapturing)
	localPath, err := p.capturer.Capture(ctx)
	if err != nil {
		p.fail()
		return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	p.mu.Lock()
	p.sess.LocalPath = localPath
	p.mu.Unlock()

	data, err := os.ReadFile(localPath)
	if err != nil {
		p.fail()
		return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	// Fail fast on a malformed payload before any external call is made.
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		p.fail()
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if p.previewer != nil {
		p.setStatus(StatusPreviewing)
		preview, err := p.previewer.Preview(data)
		if err != nil {
			slog.Warn("preview generation failed, continuing without one", "error", err)
		} else {
			p.mu.Lock()
			p.sess.Preview = preview
			p.mu.Unlock()
		}
	}

	p.setStatus(StatusUploading)
	res, err := p.uploader.Upload(ctx, localPath)
	if err != nil {
		p.fail()
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	p.mu.Lock()
	p.sess.Status = StatusReady
	p.sess.Upload = &res
	p.mu.Unlock()

	slog.Info("capture ready", "key", res.Key, "path", localPath)
	return nil
}

// State returns a snapshot of the current session.
func (p *Pipeline) State() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sess
	if p.sess.Upload != nil {
		u := *p.sess.Upload
		s.Upload = &u
	}
	return s
}

// Consume hands the pending upload to the caller exactly once and resets the
// pipeline. It returns nil unless the session is Ready.
func (p *Pipeline) Consume() *storage.UploadResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess.Status != StatusReady {
		return nil
	}
	res := p.sess.Upload
	p.sess.Status = StatusConsumed
	p.clearLocked()
	return res
}

// Discard drops the pending upload and resets to Idle. A no-op while a
// flight is mid-run.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.sess.Status {
	case StatusIdle, StatusReady:
		p.clearLocked()
	default:
		slog.Warn("discard ignored mid-flight", "status", p.sess.Status.String())
	}
}

// fail clears all ephemeral state and returns the pipeline to Idle so a new
// capture can be attempted immediately.
func (p *Pipeline) fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sess.Status = StatusFailed
	p.clearLocked()
}

// clearLocked removes the local artifact and resets the session to Idle.
func (p *Pipeline) clearLocked() {
	if p.sess.LocalPath != "" {
		if err := os.Remove(p.sess.LocalPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove local artifact", "path", p.sess.LocalPath, "error", err)
		}
	}
	p.sess = Session{Status: StatusIdle}
}

func (p *Pipeline) setStatus(s Status) {
	p.mu.Lock()
	p.sess.Status = s
	p.mu.Unlock()
}
