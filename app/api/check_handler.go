package api

import (
	"docsearch/model"
	"docsearch/store"
	"docsearch/types"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	store    store.VectorStore
	embedder model.Embedder
}

func NewCheckHandler(st store.VectorStore, emb model.Embedder) *CheckHandler {
	return &CheckHandler{store: st, embedder: emb}
}

// HandleHealthy reports storage and embedding readiness independently. It
// never runs the full pipeline.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	resp := types.HealthResponse{Status: "ok", Storage: "ok", Embedder: "ok"}

	if err := h.store.Ping(c.UserContext()); err != nil {
		resp.Storage = err.Error()
		resp.Status = "degraded"
	}
	if err := h.embedder.Ready(c.UserContext()); err != nil {
		resp.Embedder = err.Error()
		resp.Status = "degraded"
	}
	return c.JSON(resp)
}
