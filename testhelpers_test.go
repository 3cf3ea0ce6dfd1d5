package snapdb

import (
	"path/filepath"
	"testing"
)

// openTestFile creates a fresh in-memory archive and registers cleanup
// to close it when the test finishes. Used by nearly every test below.
func openTestFile(t *testing.T) *File {
	t.Helper()
	f, err := CreateInMemory(4096, Config{})
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// openTestFileOnDisk is like openTestFile but backs the archive with a
// real file in a temporary directory, for tests that exercise
// close/reopen/crash-recovery behavior an in-memory archive can't.
func openTestFileOnDisk(t *testing.T) (*File, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.snapdb")
	f, err := Create(path, 4096, Config{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f, path
}

func newU64Key() Key     { return &Uint64Key{} }
func newU64Value() Value { return &Float64Value{} }

func fixedDef() EncodingDefinition {
	return EncodingDefinition{Combined: true, Combo: FixedSizeEncoding}
}

// createTestTree opens a fresh Edit, creates one fixed-size-pair
// sub-file/tree pair over uint64 keys and values, and returns both the
// tree and the Edit so the caller can mutate and Commit/Rollback.
func createTestTree(t *testing.T, f *File) (*Edit, *SortedTree) {
	t.Helper()
	edit, err := f.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	name := SubFileName{
		Purpose:   PrimaryArchivePurpose,
		KeyType:   newU64Key().TypeGUID(),
		ValueType: newU64Value().TypeGUID(),
	}
	stream, err := edit.CreateSubFile(name)
	if err != nil {
		t.Fatalf("CreateSubFile: %v", err)
	}
	tree, err := CreateTree(stream, f.BlockSize(), fixedDef(), newU64Key, newU64Value)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	return edit, tree
}

// openTestTree opens the primary sub-file's tree against a snapshot.
func openTestTree(t *testing.T, snap *ReadSnapshot) *SortedTree {
	t.Helper()
	subFiles := snap.SubFiles()
	if len(subFiles) == 0 {
		t.Fatalf("no sub-files in snapshot")
	}
	stream, err := snap.OpenSubFile(subFiles[0])
	if err != nil {
		t.Fatalf("OpenSubFile: %v", err)
	}
	tree, err := OpenTree(stream, newU64Key, newU64Value)
	if err != nil {
		t.Fatalf("OpenTree: %v", err)
	}
	return tree
}

func u64Key(v uint64) Key       { return &Uint64Key{V: v} }
func u64Value(v float64) Value { return &Float64Value{V: v} }
