package types

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the origin surface a document arrived from.
type Source string

const (
	SourceUpload  Source = "upload"
	SourceTeams   Source = "teams"
	SourcePlanner Source = "planner"
)

func (s Source) Valid() bool {
	switch s {
	case SourceUpload, SourceTeams, SourcePlanner:
		return true
	}
	return false
}

// Document is one ingested file. The (Source, SourceID, ContentHash) triple
// is the idempotency key: reprocessing identical content from the same
// origin resolves to the same stored document.
type Document struct {
	ID             uuid.UUID
	Filename       string
	Source         Source
	SourceID       string
	ContentHash    string
	UploadedBy     string
	ContentType    string
	SizeBytes      int64
	TaskID         string
	TaskTitle      string
	ConversationID string
	Metadata       map[string]any
	UploadedAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is a bounded segment of a document's normalized text, the unit of
// embedding and retrieval. Indices are contiguous from 0 within a document.
type Chunk struct {
	ID        uuid.UUID
	DocID     uuid.UUID
	Index     int
	Content   string
	Embedding []float32
	Page      int
	Section   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// IngestResult is what the ingestion coordinator reports per submission.
type IngestResult struct {
	DocumentID     uuid.UUID
	Filename       string
	Source         Source
	ChunkCount     int
	ProcessingTime time.Duration
	Success        bool
}
