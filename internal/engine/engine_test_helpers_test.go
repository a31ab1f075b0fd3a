package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/obuild/obuild/internal/obslog"
)

// testContext returns a context carrying a discard logger, since every
// engine entry point expects one attached via obslog.WithLogger.
func testContext() context.Context {
	logger := zerolog.Nop()
	return obslog.WithLogger(context.Background(), &logger)
}

// chdirTemp creates a temp dir, chdirs into it, and restores the original
// working directory when the test ends.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

// touch creates name with the given content and sets its mtime explicitly,
// so staleness comparisons in tests are deterministic regardless of how
// fast the test runs.
func touch(t *testing.T, name string, mtime time.Time) {
	t.Helper()
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(name, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}
