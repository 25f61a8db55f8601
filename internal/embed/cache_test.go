package embed

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := NewCache(dir, "test-model")
	c.Put(Key("alpha"), []float32{1, 2, 3})
	c.Put(Key("beta"), []float32{4, 5, 6})
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewCache(dir, "test-model")
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reloaded.Len())
	}
	v := reloaded.Get(Key("alpha"))
	if len(v) != 3 || v[0] != 1 {
		t.Errorf("reloaded vector = %v", v)
	}
}

func TestCacheLoadMissingFile(t *testing.T) {
	c := NewCache(t.TempDir(), "never-saved")

	if err := c.Load(); err != nil {
		t.Errorf("Load on missing file: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestCacheSaveSkippedWhenClean(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, "clean-model")

	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Nothing was put, so no file should exist.
	if _, err := os.Stat(filepath.Join(dir, "clean-model.json")); !os.IsNotExist(err) {
		t.Error("clean cache wrote a file")
	}
}

func TestCacheGetMissingKey(t *testing.T) {
	c := NewCache(t.TempDir(), "m")

	if v := c.Get(Key("unknown")); v != nil {
		t.Errorf("Get on missing key = %v, want nil", v)
	}
}

func TestCacheModelNameSanitized(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, "models/gemini:embedding 001")
	c.Put(Key("x"), []float32{1})
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Base(name) != name {
			t.Errorf("cache file escaped directory: %q", name)
		}
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(t.TempDir(), "concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := Key(string(rune('a' + n)))
			c.Put(key, []float32{float32(n)})
			_ = c.Get(key)
		}(i)
	}
	wg.Wait()

	if c.Len() != 8 {
		t.Errorf("Len = %d, want 8", c.Len())
	}
}

func TestKeyStable(t *testing.T) {
	if Key("content") != Key("content") {
		t.Error("same content hashed to different keys")
	}
	if Key("a") == Key("b") {
		t.Error("different content hashed to same key")
	}
}
