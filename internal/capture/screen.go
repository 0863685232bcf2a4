package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// ScreenCapturer shells out to the platform screenshot tool and writes the
// capture into a scratch directory.
type ScreenCapturer struct {
	dir string
}

func NewScreenCapturer(dir string) *ScreenCapturer {
	return &ScreenCapturer{dir: dir}
}

func (s *ScreenCapturer) tool() (name string, args func(path string) []string) {
	if runtime.GOOS == "darwin" {
		// -x suppresses the shutter sound.
		return "screencapture", func(path string) []string { return []string{"-x", path} }
	}
	return "gnome-screenshot", func(path string) []string { return []string{"-f", path} }
}

// CheckPermission reports whether a screenshot tool is available. On macOS
// the screen-recording consent dialog is raised by the OS on first capture,
// not by a separate probe.
func (s *ScreenCapturer) CheckPermission(_ context.Context) (bool, error) {
	name, _ := s.tool()
	_, err := exec.LookPath(name)
	return err == nil, nil
}

// RequestPermission re-checks availability. The actual consent prompt is
// owned by the OS and appears during Capture.
func (s *ScreenCapturer) RequestPermission(ctx context.Context) (bool, error) {
	return s.CheckPermission(ctx)
}

// Capture takes a full-screen screenshot and returns the local file path.
func (s *ScreenCapturer) Capture(ctx context.Context) (string, error) {
	name, args := s.tool()
	path := filepath.Join(s.dir, "glimpse-"+uuid.New().String()+".png")

	cmd := exec.CommandContext(ctx, name, args(path)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s: %v: %s", name, err, out)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("no capturable surface: %s produced no file", name)
	}
	return path, nil
}
