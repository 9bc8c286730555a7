// Package bundle turns a finished extraction into downloadable bytes: one
// entry per file, or a zip archive of all of them.
package bundle

import (
	"archive/zip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
)

var (
	// ErrNotCompleted is returned when an archive is requested for an
	// extraction that has not completed.
	ErrNotCompleted = errors.New("extraction has not completed")
	// ErrFileNotFound is returned when a file id is not part of an extraction.
	ErrFileNotFound = errors.New("file not found in extraction")
	// ErrUnsafePath is returned for an entry that would land outside the
	// archive root.
	ErrUnsafePath = errors.New("unsafe archive path")
)

// Entry is a single archive member.
type Entry struct {
	Path    string
	Content []byte
}

// Entries returns one entry per extracted file, in file order. Binary files
// are decoded from their data URI back to raw bytes.
func Entries(r *extractiondb.ExtractionResult) ([]Entry, error) {
	if r.Status != extractiondb.StatusCompleted {
		return nil, fmt.Errorf("Unable to bundle extraction %s (%s): %w", r.ID, r.Status, ErrNotCompleted)
	}
	entries := make([]Entry, 0, len(r.Files))
	for _, f := range r.Files {
		content, err := decode(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: f.Path, Content: content})
	}
	return entries, nil
}

// File returns the raw content of one file together with its MIME type.
func File(r *extractiondb.ExtractionResult, fileID string) ([]byte, string, error) {
	f, ok := r.FileByID(fileID)
	if !ok {
		return nil, "", fmt.Errorf("Unable to find file %s: %w", fileID, ErrFileNotFound)
	}
	content, err := decode(f)
	if err != nil {
		return nil, "", err
	}
	return content, f.MimeType, nil
}

// WriteZip writes entries as a zip archive to w. Paths are kept as stored,
// duplicates included, but an entry that is absolute or climbs out of the
// root fails the whole archive.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	modified := time.Now()
	for _, e := range entries {
		if !safePath(e.Path) {
			return fmt.Errorf("Unable to add %q to archive: %w", e.Path, ErrUnsafePath)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Path,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("Unable to add %s to archive: %w", e.Path, err)
		}
		if _, err := fw.Write(e.Content); err != nil {
			return fmt.Errorf("Unable to write %s to archive: %w", e.Path, err)
		}
	}
	return zw.Close()
}

func safePath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

func decode(f *extractiondb.ExtractedFile) ([]byte, error) {
	if !f.Binary {
		return []byte(f.Content), nil
	}
	_, data, ok := strings.Cut(f.Content, ";base64,")
	if !ok || !strings.HasPrefix(f.Content, "data:") {
		return nil, fmt.Errorf("Unable to decode %s: content is not a base64 data uri", f.Path)
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("Unable to decode %s: %w", f.Path, err)
	}
	return b, nil
}
