package smb

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	raw, _ := json.Marshal(Config{Server: "//nas/media", MountPath: dir})
	b, err := NewFromJSON(raw)
	if err != nil {
		t.Fatalf("NewFromJSON: %v", err)
	}
	if b.Type() != "smb" {
		t.Errorf("Type = %q, want smb", b.Type())
	}
	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	rc, n, err := b.GetObject(context.Background(), "a.bin", 1, 3)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if n != 3 || string(data) != "ell" {
		t.Errorf("got %q (n=%d), want \"ell\" (n=3)", data, n)
	}
}

func TestNewRequiresMount(t *testing.T) {
	if _, err := New(Config{Server: "//nas/media"}); err == nil {
		t.Error("expected error without mount_path")
	}
	if _, err := New(Config{Server: "//nas/media", MountPath: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for an unmounted share")
	}
}
