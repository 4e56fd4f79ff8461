package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/novasearch/novasearch/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "novasearch-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := Open(filepath.Join(tmpDir, "index.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(path, filename string, size uint64) model.FileEntry {
	now := time.Now()
	return model.FileEntry{
		Filename:     filename,
		Path:         path,
		Size:         size,
		ModifiedTime: now,
		FileType:     model.FileTypeRegular,
		IndexedTime:  now,
	}
}

func TestStore_InsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e1 := testEntry("/a/b.txt", "b.txt", 10)
	if _, err := s.Insert(ctx, e1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	results, err := s.Query(ctx, "b", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 1 || results[0].Path != e1.Path {
		t.Fatalf("expected [%v], got %v", e1.Path, results)
	}
}

func TestStore_InsertDuplicatePathConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEntry("/a/b.txt", "b.txt", 10)
	if _, err := s.Insert(ctx, e); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	_, err := s.Insert(ctx, e)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestStore_QueryRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	exact := testEntry("/a/b.txt", "b.txt", 10)
	prefix := testEntry("/a/boot.txt", "boot.txt", 20)
	substring := testEntry("/a/tab.txt", "tab.txt", 30)

	ops := []model.IndexOperation{
		model.AddOp(exact),
		model.AddOp(prefix),
		model.AddOp(substring),
	}
	if err := s.ApplyBatch(ctx, ops); err != nil {
		t.Fatalf("apply_batch failed: %v", err)
	}

	if err := s.RecordLaunch(ctx, "/a/boot.txt"); err != nil {
		t.Fatalf("record_launch failed: %v", err)
	}

	results, err := s.Query(ctx, "b", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	want := []string{"b.txt", "boot.txt", "tab.txt"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d: %v", len(want), len(results), results)
	}
	for i, name := range want {
		if results[i].Filename != name {
			t.Errorf("result[%d] = %q, want %q", i, results[i].Filename, name)
		}
	}
}

func TestStore_ApplyBatchIdempotentAdd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEntry("/a/b.txt", "b.txt", 10)
	ops := []model.IndexOperation{model.AddOp(e), model.AddOp(e)}
	if err := s.ApplyBatch(ctx, ops); err != nil {
		t.Fatalf("apply_batch failed: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after idempotent batch, got %d", count)
	}
}

func TestStore_MoveRenamesFilename(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEntry("/a/old.txt", "old.txt", 10)
	if _, err := s.Insert(ctx, e); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := s.Move(ctx, "/a/old.txt", "/a/new.txt"); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	results, err := s.Query(ctx, "new", 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 1 || results[0].Filename != "new.txt" || results[0].Path != "/a/new.txt" {
		t.Fatalf("unexpected move result: %v", results)
	}
}

func TestStore_DeleteCascadesUsageStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEntry("/a/b.txt", "b.txt", 10)
	if _, err := s.Insert(ctx, e); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.RecordLaunch(ctx, "/a/b.txt"); err != nil {
		t.Fatalf("record_launch failed: %v", err)
	}

	if err := s.Delete(ctx, "/a/b.txt"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	used, err := s.MostUsed(ctx, 10)
	if err != nil {
		t.Fatalf("most_used failed: %v", err)
	}
	if len(used) != 0 {
		t.Fatalf("expected no usage stats after delete, got %v", used)
	}
}

func TestStore_MostUsedExcludesNeverLaunched(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	launched := testEntry("/a/used.txt", "used.txt", 10)
	unlaunched := testEntry("/a/unused.txt", "unused.txt", 10)
	if _, err := s.Insert(ctx, launched); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := s.Insert(ctx, unlaunched); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.RecordLaunch(ctx, "/a/used.txt"); err != nil {
		t.Fatalf("record_launch failed: %v", err)
	}

	used, err := s.MostUsed(ctx, 10)
	if err != nil {
		t.Fatalf("most_used failed: %v", err)
	}
	if len(used) != 1 || used[0].Path != "/a/used.txt" {
		t.Fatalf("expected only used.txt, got %v", used)
	}
}

func TestStore_SchemaVersionSurvivesReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "novasearch-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	dbPath := filepath.Join(tmpDir, "index.db")

	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := s1.Insert(context.Background(), testEntry("/a/b.txt", "b.txt", 10)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	version, err := currentVersion(s2.db)
	if err != nil {
		t.Fatalf("currentVersion failed: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("expected schema version %d, got %d", schemaVersion, version)
	}

	count, err := s2.Count(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record to survive reopen, got %d", count)
	}
}
