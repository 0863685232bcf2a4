// Package testutil holds thread-safe in-memory fakes for the external
// collaborators: screen capture, object storage, preview generation, and the
// streaming agent.
package testutil

import (
	"context"
	"sync"

	"github.com/zenapp/glimpse/internal/chat"
	"github.com/zenapp/glimpse/internal/storage"
)

// FakeCapturer simulates the screen-capture collaborator.
type FakeCapturer struct {
	mu sync.Mutex

	PermissionGranted bool // result of CheckPermission
	RequestGranted    bool // result of RequestPermission
	CapturePath       string
	CaptureErr        error

	// Gate, when set, blocks Capture until the channel is closed. Used to
	// hold the pipeline mid-flight in re-entrancy tests.
	Gate chan struct{}

	CheckCalls   int
	RequestCalls int
	CaptureCalls int
}

func (f *FakeCapturer) CheckPermission(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckCalls++
	return f.PermissionGranted, nil
}

func (f *FakeCapturer) RequestPermission(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RequestCalls++
	return f.RequestGranted, nil
}

func (f *FakeCapturer) Capture(_ context.Context) (string, error) {
	f.mu.Lock()
	f.CaptureCalls++
	gate := f.Gate
	path, err := f.CapturePath, f.CaptureErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return path, err
}

// FakeUploader simulates the object-storage collaborator.
type FakeUploader struct {
	mu sync.Mutex

	Result storage.UploadResult
	Err    error

	Calls int
	Paths []string
}

func (f *FakeUploader) Upload(_ context.Context, localPath string) (storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return storage.UploadResult{}, f.Err
	}
	f.Paths = append(f.Paths, localPath)
	return f.Result, nil
}

// FakePreviewer simulates the resize/encode byte transform.
type FakePreviewer struct {
	mu sync.Mutex

	Data []byte
	Err  error

	Calls int
}

func (f *FakePreviewer) Preview(_ []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Data, nil
}

// FakeStarter simulates the remote agent's start-stream operation.
type FakeStarter struct {
	mu sync.Mutex

	Err error

	Calls        int
	LastPrompt   string
	LastHistory  []chat.HistoryEntry
	LastImageURL string
}

func (f *FakeStarter) StartStream(_ context.Context, prompt string, history []chat.HistoryEntry, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return f.Err
	}
	f.LastPrompt = prompt
	f.LastHistory = history
	f.LastImageURL = imageURL
	return nil
}

func (f *FakeStarter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
