package blob

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestKeys(t *testing.T) {
	if got := ImageKey("abc"); got != "image/abc.jpg" {
		t.Fatalf("ImageKey = %q", got)
	}
	if got := AudioKey("abc"); got != "audio/abc.mp3" {
		t.Fatalf("AudioKey = %q", got)
	}
}

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	url, err := store.Put(ctx, ImageKey("song-1"), "image/jpeg", bytes.NewBufferString("payload"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(url, "mem://") {
		t.Fatalf("url = %q", url)
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}

	data, ok := store.Get(ImageKey("song-1"))
	if !ok || string(data) != "payload" {
		t.Fatalf("Get = %q, %v", data, ok)
	}

	// Overwrite on the same key replaces the object.
	if _, err := store.Put(ctx, ImageKey("song-1"), "image/jpeg", bytes.NewBufferString("replaced")); err != nil {
		t.Fatalf("overwrite Put: %v", err)
	}
	data, _ = store.Get(ImageKey("song-1"))
	if string(data) != "replaced" {
		t.Fatalf("after overwrite = %q", data)
	}
	if store.Len() != 1 {
		t.Fatalf("len after overwrite = %d, want 1", store.Len())
	}

	if err := store.Delete(ctx, ImageKey("song-1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, ImageKey("song-1")); err == nil {
		t.Fatalf("second delete should fail")
	}
	if store.Len() != 0 {
		t.Fatalf("len after delete = %d, want 0", store.Len())
	}
}
