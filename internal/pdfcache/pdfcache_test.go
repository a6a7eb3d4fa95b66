package pdfcache

import (
	"os"
	"path/filepath"
	"testing"
)

func countBlobFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestStoreDedupesIdenticalContent(t *testing.T) {
	c, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("same bytes")

	if err := c.Store("id1", payload); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("id2", payload); err != nil {
		t.Fatal(err)
	}

	if n := countBlobFiles(t, c.dir); n != 1 {
		t.Fatalf("expected exactly one blob on disk, got %d", n)
	}
}

func TestDeleteOneIDLeavesOtherAccessible(t *testing.T) {
	c, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("shared content")

	c.Store("id1", payload)
	c.Store("id2", payload)

	c.Delete("id1")

	if _, ok := c.Get("id1"); ok {
		t.Fatal("expected id1 to be gone")
	}
	data, ok := c.Get("id2")
	if !ok || string(data) != string(payload) {
		t.Fatal("expected id2 to still resolve to the shared blob")
	}
}

func TestDeleteAllIDsRemovesBlob(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("ephemeral")

	c.Store("id1", payload)
	c.Store("id2", payload)
	c.Delete("id1")
	c.Delete("id2")

	if n := countBlobFiles(t, dir); n != 0 {
		t.Fatalf("expected blob to be gone once its last referencing id was deleted, found %d files", n)
	}
}
