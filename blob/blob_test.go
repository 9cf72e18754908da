package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDiskRoundTrip(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("new disk: %v", err)
	}
	ctx := context.Background()

	key, size, err := d.Put(ctx, "notes.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if size != 5 {
		t.Fatalf("expected size 5, got %d", size)
	}
	if !strings.HasPrefix(key, "task_attachments/") || !strings.HasSuffix(key, "/notes.txt") {
		t.Fatalf("unexpected key %q", key)
	}

	rc, err := d.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "hello" {
		t.Fatalf("expected hello, got %q", b)
	}

	if err := d.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := d.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := d.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
}

func TestKeyStripsDirectories(t *testing.T) {
	for _, name := range []string{"../../etc/passwd", `C:\temp\evil.exe`, "", ".."} {
		key := Key(name)
		if strings.Contains(key, "..") {
			t.Fatalf("key %q for %q escapes prefix", key, name)
		}
		if strings.Count(key, "/") != 2 {
			t.Fatalf("key %q for %q should be prefix/uuid/name", key, name)
		}
	}
}

func TestDiskRejectsTraversal(t *testing.T) {
	d, _ := NewDisk(t.TempDir())
	if _, err := d.Open(context.Background(), "../outside"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected invalid key error, got %v", err)
	}
}
