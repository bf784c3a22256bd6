package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/repository"
)

// CreateTestLibrary registers an enabled library rooted at path.
func CreateTestLibrary(t testing.TB, catalog *repository.GormCatalog, path string, kind domain.Kind) *domain.Library {
	t.Helper()

	library := &domain.Library{
		ID:      uuid.New(),
		Name:    "library-" + uuid.NewString()[:8],
		Path:    path,
		Kind:    kind,
		Enabled: true,
	}
	if err := catalog.CreateLibrary(context.Background(), library); err != nil {
		t.Fatalf("Failed to create test library: %v", err)
	}
	return library
}

// WriteMediaFile creates a small file under root and returns its path.
func WriteMediaFile(t testing.TB, root string, rel ...string) string {
	t.Helper()

	path := filepath.Join(append([]string{root}, rel...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("Failed to write media file: %v", err)
	}
	return path
}
