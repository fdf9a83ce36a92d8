package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const DefaultTopK = 5

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// QueryFilters narrow a search to documents matching all set fields.
type QueryFilters struct {
	Source         Source `json:"source,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	UploadedBy     string `json:"uploaded_by,omitempty"`
}

type QueryParams struct {
	Query   string       `json:"query" validate:"required"`
	TopK    int          `json:"top_k" validate:"omitempty,gt=0"`
	Filters QueryFilters `json:"filters"`
}

func (params *QueryParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	if params.Filters.Source != "" && !params.Filters.Source.Valid() {
		return map[string]string{"Source": "unknown source"}
	}
	return nil
}

type IngestParams struct {
	Source         string `json:"source" validate:"required"`
	SourceID       string `json:"source_id"`
	UploadedBy     string `json:"uploaded_by"`
	ContentType    string `json:"content_type"`
	TaskID         string `json:"task_id"`
	TaskTitle      string `json:"task_title"`
	ConversationID string `json:"conversation_id"`
}

func (params *IngestParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	if !Source(params.Source).Valid() {
		return map[string]string{"Source": "unknown source"}
	}
	return nil
}

// SearchResult is one attributed passage returned by the query engine.
type SearchResult struct {
	DocumentID     uuid.UUID `json:"document_id"`
	Content        string    `json:"content"`
	Score          float64   `json:"score"`
	Source         Source    `json:"source"`
	Filename       string    `json:"filename"`
	TaskID         string    `json:"task_id,omitempty"`
	TaskTitle      string    `json:"task_title,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ChunkIndex     int       `json:"chunk_index"`
	Page           int       `json:"page,omitempty"`
	Section        string    `json:"section,omitempty"`
}

type QueryResponse struct {
	Query                 string         `json:"query"`
	Results               []SearchResult `json:"results"`
	TotalResults          int            `json:"total_results"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
}

type IngestResponse struct {
	DocumentID            uuid.UUID `json:"document_id"`
	Filename              string    `json:"filename"`
	Source                Source    `json:"source"`
	ChunkCount            int       `json:"chunk_count"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	Success               bool      `json:"success"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Storage  string `json:"storage"`
	Embedder string `json:"embedder"`
}
