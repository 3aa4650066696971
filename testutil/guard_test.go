package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nimport (\n\t\"fmt\"\n\t\"sweepcore/internal/infra/blob/fs\"\n)\n")
	writeFile(t, dir, "a_test.go", "package a\n\nimport \"sweepcore/internal/infra/blob/s3\"\n")

	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	// Test files are exempt; only a.go's infra import counts.
	if len(viols) != 1 {
		t.Fatalf("expected 1 violation, got %v", viols)
	}
}

func TestPredicates(t *testing.T) {
	if !InternalImportForbidden("sweepcore/internal/core") {
		t.Fatalf("internal path should match")
	}
	if InternalImportForbidden("sweepcore/pkg/domain") {
		t.Fatalf("pkg path should not match")
	}
	if !NonStdlibForbidden("github.com/prometheus/client_golang/prometheus") {
		t.Fatalf("third-party path should match")
	}
	if NonStdlibForbidden("encoding/json") {
		t.Fatalf("stdlib path should not match")
	}
}
