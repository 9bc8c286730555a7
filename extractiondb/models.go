package extractiondb

import "time"

// Status represents the lifecycle state of an extraction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileType is the semantic category of an extracted file.
type FileType string

const (
	TypeHTML    FileType = "html"
	TypeCSS     FileType = "css"
	TypeJS      FileType = "js"
	TypeImage   FileType = "image"
	TypePayload FileType = "payload"
	TypeOther   FileType = "other"
)

// ExtractedFile represents one retrieved or synthesized artifact. Size is
// always the byte length of Content as stored.
type ExtractedFile struct {
	ID        string   `json:"id" db:"id"`
	Name      string   `json:"name" db:"name"`
	Path      string   `json:"path" db:"path"`
	Type      FileType `json:"type" db:"type"`
	Size      int64    `json:"size" db:"size"`
	Content   string   `json:"content,omitempty" db:"content"`
	MimeType  string   `json:"mimeType" db:"mime_type"`
	Binary    bool     `json:"binary" db:"is_binary"`
	SourceURL string   `json:"sourceUrl,omitempty" db:"source_url"`
}

// ExtractionResult represents a single extraction and the files collected
// for it.
type ExtractionResult struct {
	ID          string           `json:"id" db:"id"`
	URL         string           `json:"url" db:"url"`
	Status      Status           `json:"status" db:"status"`
	Files       []*ExtractedFile `json:"files" db:"-"`
	TotalSize   int64            `json:"totalSize" db:"total_size"`
	TotalFiles  int              `json:"totalFiles" db:"total_files"`
	ExtractedAt time.Time        `json:"extractedAt" db:"extracted_at"`
	Error       string           `json:"error,omitempty" db:"error"`
}

// Update holds the fields merged into an ExtractionResult by Store.Update.
// Nil fields are left untouched.
type Update struct {
	Status *Status
	Error  *string
}

// Recompute sets TotalFiles and TotalSize from the full Files sequence.
func (r *ExtractionResult) Recompute() {
	var size int64
	for _, f := range r.Files {
		size += f.Size
	}
	r.TotalFiles = len(r.Files)
	r.TotalSize = size
}

// Clone returns a copy of r that shares no mutable state with it.
func (r *ExtractionResult) Clone() *ExtractionResult {
	c := *r
	c.Files = make([]*ExtractedFile, len(r.Files))
	for i, f := range r.Files {
		fc := *f
		c.Files[i] = &fc
	}
	return &c
}

// Summary returns a copy of r with file contents omitted.
func (r *ExtractionResult) Summary() *ExtractionResult {
	c := r.Clone()
	for _, f := range c.Files {
		f.Content = ""
	}
	return c
}

// FileByID returns the file with the given id, if present.
func (r *ExtractionResult) FileByID(id string) (*ExtractedFile, bool) {
	for _, f := range r.Files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}
