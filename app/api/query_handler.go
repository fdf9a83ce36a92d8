package api

import (
	"docsearch/engine"
	"docsearch/types"

	"github.com/gofiber/fiber/v2"
)

type QueryHandler struct {
	engine *engine.Engine
}

func NewQueryHandler(eng *engine.Engine) *QueryHandler {
	return &QueryHandler{engine: eng}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	resp, err := h.engine.Query(c.UserContext(), params)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
