package controller

import (
	"kb-ingest-be/internal/dto"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/pkg/serverutils"
	"kb-ingest-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISpaceController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	TriggerRefresh(ctx *fiber.Ctx) error
}

type spaceController struct {
	spaceService   service.ISpaceService
	refreshService service.IRefreshService
}

func NewSpaceController(spaceService service.ISpaceService, refreshService service.IRefreshService) ISpaceController {
	return &spaceController{
		spaceService:   spaceService,
		refreshService: refreshService,
	}
}

func (c *spaceController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/space/v1")
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Post(":id/refresh", c.TriggerRefresh)
}

func (c *spaceController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSpaceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return faults.Wrap(faults.KindConfiguration, err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.spaceService.Create(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create knowledge space", res))
}

func (c *spaceController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return faults.Configuration("invalid space id")
	}

	res, err := c.spaceService.Get(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show knowledge space", res))
}

func (c *spaceController) List(ctx *fiber.Ctx) error {
	res, err := c.spaceService.List(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list knowledge spaces", res))
}

func (c *spaceController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return faults.Configuration("invalid space id")
	}

	if err := c.spaceService.Delete(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete knowledge space", nil))
}

func (c *spaceController) TriggerRefresh(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return faults.Configuration("invalid space id")
	}

	res, err := c.refreshService.TriggerSpaceRefresh(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success trigger space refresh", res))
}
