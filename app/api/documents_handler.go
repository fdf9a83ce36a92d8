package api

import (
	"docsearch/store"
	"docsearch/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	store store.VectorStore
}

func NewDocumentHandler(st store.VectorStore) *DocumentHandler {
	return &DocumentHandler{store: st}
}

type documentItem struct {
	ID             uuid.UUID      `json:"id"`
	Filename       string         `json:"filename"`
	Source         types.Source   `json:"source"`
	SourceID       string         `json:"source_id"`
	UploadedBy     string         `json:"uploaded_by,omitempty"`
	ContentType    string         `json:"content_type,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	TaskID         string         `json:"task_id,omitempty"`
	TaskTitle      string         `json:"task_title,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	UploadedAt     string         `json:"uploaded_at"`
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	source := types.Source(c.Query("source"))
	if source != "" && !source.Valid() {
		return NewValidationError(map[string]string{"source": "unknown source"})
	}

	docs, err := h.store.ListDocuments(c.UserContext(), source)
	if err != nil {
		return types.NewStorageError("documents", err)
	}

	items := make([]documentItem, len(docs))
	for i, d := range docs {
		items[i] = documentItem{
			ID:             d.ID,
			Filename:       d.Filename,
			Source:         d.Source,
			SourceID:       d.SourceID,
			UploadedBy:     d.UploadedBy,
			ContentType:    d.ContentType,
			SizeBytes:      d.SizeBytes,
			TaskID:         d.TaskID,
			TaskTitle:      d.TaskTitle,
			ConversationID: d.ConversationID,
			Metadata:       d.Metadata,
			UploadedAt:     d.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return c.JSON(fiber.Map{"documents": items, "total": len(items)})
}

// HandleDelete retracts a document; its chunks go with it. Deleting an
// unknown id still returns ok.
func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if err := h.store.Delete(c.UserContext(), id); err != nil {
		return types.NewStorageError("documents", err)
	}
	return c.JSON(fiber.Map{"deleted": id})
}
