package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	calls int
	keys  []string
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, *params.Key)
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	calls int
	err   error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s?X-Amz-Expires=900", *params.Bucket, *params.Key),
	}, nil
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func newTestUploader(p *fakePutter, pr *fakePresigner) *S3Uploader {
	return &S3Uploader{
		client:    p,
		presigner: pr,
		bucket:    "shots",
		keyPrefix: "screenshots",
		urlTTL:    15 * time.Minute,
	}
}

func TestUpload_PutsAndPresigns(t *testing.T) {
	p := &fakePutter{}
	pr := &fakePresigner{}
	u := newTestUploader(p, pr)

	path := writeTempFile(t, "shot.png", []byte("png-bytes"))
	res, err := u.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if p.calls != 1 || pr.calls != 1 {
		t.Errorf("expected 1 put and 1 presign, got %d / %d", p.calls, pr.calls)
	}
	if !strings.HasPrefix(res.Key, "screenshots/") {
		t.Errorf("expected prefixed key, got %s", res.Key)
	}
	if !strings.HasSuffix(res.Key, ".png") {
		t.Errorf("expected extension preserved, got %s", res.Key)
	}
	if !strings.Contains(res.URL, res.Key) {
		t.Errorf("expected url for key %s, got %s", res.Key, res.URL)
	}
	if string(p.body) != "png-bytes" {
		t.Errorf("expected file body uploaded, got %q", p.body)
	}
}

func TestUpload_UniqueKeys(t *testing.T) {
	p := &fakePutter{}
	u := newTestUploader(p, &fakePresigner{})

	path := writeTempFile(t, "shot.png", []byte("x"))
	if _, err := u.Upload(context.Background(), path); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := u.Upload(context.Background(), path); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if p.keys[0] == p.keys[1] {
		t.Errorf("expected unique keys, got %s twice", p.keys[0])
	}
}

func TestUpload_PutFailure(t *testing.T) {
	p := &fakePutter{err: fmt.Errorf("access denied")}
	u := newTestUploader(p, &fakePresigner{})

	path := writeTempFile(t, "shot.png", []byte("x"))
	if _, err := u.Upload(context.Background(), path); err == nil {
		t.Fatal("expected error from failed put")
	}
}

func TestUpload_MissingFile(t *testing.T) {
	u := newTestUploader(&fakePutter{}, &fakePresigner{})
	if _, err := u.Upload(context.Background(), "/nonexistent/shot.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
