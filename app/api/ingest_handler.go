package api

import (
	"io"

	"docsearch/ingest"
	"docsearch/types"

	"github.com/gofiber/fiber/v2"
)

type IngestHandler struct {
	coordinator *ingest.Coordinator
}

func NewIngestHandler(coordinator *ingest.Coordinator) *IngestHandler {
	return &IngestHandler{coordinator: coordinator}
}

// HandleIngest accepts a multipart upload: the file plus origin fields.
func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	params := types.IngestParams{
		Source:         c.FormValue("source", string(types.SourceUpload)),
		SourceID:       c.FormValue("source_id"),
		UploadedBy:     c.FormValue("uploaded_by"),
		ContentType:    c.FormValue("content_type"),
		TaskID:         c.FormValue("task_id"),
		TaskTitle:      c.FormValue("task_title"),
		ConversationID: c.FormValue("conversation_id"),
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return ErrBadRequest()
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return ErrBadRequest()
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = fileHeader.Header.Get("Content-Type")
	}

	sub := buildSubmission(params, fileHeader.Filename, contentType, data)
	result, err := h.coordinator.Ingest(c.UserContext(), sub)
	if err != nil {
		return err
	}

	return c.JSON(types.IngestResponse{
		DocumentID:            result.DocumentID,
		Filename:              result.Filename,
		Source:                result.Source,
		ChunkCount:            result.ChunkCount,
		ProcessingTimeSeconds: result.ProcessingTime.Seconds(),
		Success:               result.Success,
	})
}

// buildSubmission picks the origin variant for the declared source. SourceID
// falls back to the filename for direct uploads, which keeps re-uploads of
// the same file idempotent.
func buildSubmission(params types.IngestParams, filename, contentType string, data []byte) types.Submission {
	switch types.Source(params.Source) {
	case types.SourceTeams:
		return types.ChatSubmission{
			Filename:       filename,
			Data:           data,
			ContentType:    contentType,
			MessageID:      params.SourceID,
			ConversationID: params.ConversationID,
			UploadedBy:     params.UploadedBy,
		}
	case types.SourcePlanner:
		return types.TaskSubmission{
			Filename:     filename,
			Data:         data,
			ContentType:  contentType,
			AttachmentID: params.SourceID,
			TaskID:       params.TaskID,
			TaskTitle:    params.TaskTitle,
			UploadedBy:   params.UploadedBy,
		}
	default:
		sourceID := params.SourceID
		if sourceID == "" {
			sourceID = filename
		}
		return types.UploadSubmission{
			Filename:    filename,
			Data:        data,
			ContentType: contentType,
			SourceID:    sourceID,
			UploadedBy:  params.UploadedBy,
		}
	}
}
