package testing

import (
	"fmt"
	"testing"

	"github.com/dl-alexandre/docloader/internal/types"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/storage/v1"
)

// TestEntry creates a regular file entry
func TestEntry(id, name string) types.FileEntry {
	return types.FileEntry{ID: id, Name: name, Kind: types.EntryRegular}
}

// TestEntries creates n regular entries named file-<i><ext>
func TestEntries(n int, ext string) []types.FileEntry {
	entries := make([]types.FileEntry, n)
	for i := range entries {
		id := fmt.Sprintf("file-%02d", i)
		entries[i] = TestEntry(id, id+ext)
	}
	return entries
}

// TestDriveFile creates a Drive file for listing responses
func TestDriveFile(id, name, mimeType string) *drive.File {
	return &drive.File{
		Id:       id,
		Name:     name,
		MimeType: mimeType,
		Size:     1024,
	}
}

// TestDriveFolder creates a Drive folder for listing responses
func TestDriveFolder(id, name string) *drive.File {
	return &drive.File{
		Id:       id,
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
	}
}

// TestObject creates a Cloud Storage object for listing responses
func TestObject(bucket, name string, size uint64) *storage.Object {
	return &storage.Object{
		Bucket: bucket,
		Name:   name,
		Size:   size,
	}
}

// AssertAccounted fails the test unless every discovered entry is parsed or failed
func AssertAccounted(t *testing.T, report *types.IngestionReport) {
	t.Helper()
	if report == nil {
		t.Fatal("report is nil")
	}
	if !report.Accounted() {
		t.Fatalf("report lost entries: parsed=%d failed=%d discovered=%d",
			len(report.Parsed), len(report.Failed), report.TotalDiscovered)
	}
}
