package blob

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestSniff(t *testing.T) {
	ext, mime, err := Sniff(pngHeader)
	if err != nil {
		t.Fatal(err)
	}
	if ext != "png" || mime != "image/png" {
		t.Errorf("Sniff() = %q %q, want png image/png", ext, mime)
	}

	if _, _, err := Sniff([]byte("hello, plain text")); !errors.Is(err, ErrNotImage) {
		t.Errorf("Sniff(text) error = %v, want ErrNotImage", err)
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey("u1", "jpg")
	if !regexp.MustCompile(`^chat_images/u1/[0-9a-f-]{36}\.jpg$`).MatchString(key) {
		t.Errorf("NewKey() = %q", key)
	}
	if NewKey("u1", "jpg") == key {
		t.Error("keys should be unique")
	}
}

func TestLocalUpload(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(root, "https://cdn.example.com/")
	if err != nil {
		t.Fatal(err)
	}

	url, err := s.Upload(context.Background(), "chat_images/u1/a.png", bytes.NewReader(pngHeader), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.example.com/chat_images/u1/a.png" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(root, "chat_images", "u1", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Error("stored bytes differ")
	}

	entries, _ := os.ReadDir(filepath.Join(root, "chat_images", "u1"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestLocalDefaultsToFileURL(t *testing.T) {
	s, err := NewLocal(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	url, err := s.Upload(context.Background(), "k.png", bytes.NewReader(pngHeader), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/k.png") {
		t.Errorf("url = %q", url)
	}
}

func TestLocalRejectsEscapingKey(t *testing.T) {
	s, _ := NewLocal(t.TempDir(), "")
	if _, err := s.Upload(context.Background(), "../../etc/x", strings.NewReader("x"), ""); err == nil {
		t.Error("Upload() expected error for key outside root")
	}
}
