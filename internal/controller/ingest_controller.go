package controller

import (
	"kb-ingest-be/internal/dto"
	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/pkg/serverutils"
	"kb-ingest-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IIngestController interface {
	RegisterRoutes(r fiber.Router)
	SubmitSync(ctx *fiber.Ctx) error
	Resync(ctx *fiber.Ctx) error
	DocumentStatus(ctx *fiber.Ctx) error
	SubmitBatch(ctx *fiber.Ctx) error
	BatchStatus(ctx *fiber.Ctx) error
}

type ingestController struct {
	syncService  service.ISyncService
	queueService service.IQueueService
}

func NewIngestController(syncService service.ISyncService, queueService service.IQueueService) IIngestController {
	return &ingestController{
		syncService:  syncService,
		queueService: queueService,
	}
}

func (c *ingestController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ingest/v1")
	h.Post("documents", c.SubmitSync)
	h.Post("documents/:id/resync", c.Resync)
	h.Get("documents/:id", c.DocumentStatus)
	h.Post("batches", c.SubmitBatch)
	h.Get("batches/:id", c.BatchStatus)
}

func (c *ingestController) SubmitSync(ctx *fiber.Ctx) error {
	var req dto.SubmitSyncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return faults.Wrap(faults.KindConfiguration, err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.syncService.SubmitSync(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success submit document sync", res))
}

func (c *ingestController) Resync(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return faults.Configuration("invalid document id")
	}

	var req dto.ResyncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return faults.Wrap(faults.KindConfiguration, err)
	}

	params := entity.ChunkParams{
		Strategy:     req.ChunkParams.Strategy,
		ChunkSize:    req.ChunkParams.ChunkSize,
		Overlap:      req.ChunkParams.Overlap,
		ExtractImage: req.ChunkParams.ExtractImage,
		Summarize:    req.ChunkParams.Summarize,
	}
	if params.Strategy == "" {
		params.Strategy = "char"
	}

	if _, err := c.syncService.SplitAndResync(ctx.Context(), id, params); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success dispatch resync", dto.SubmitSyncResponse{DocId: id}))
}

func (c *ingestController) DocumentStatus(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return faults.Configuration("invalid document id")
	}

	res, err := c.syncService.GetDocumentStatus(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document status", res))
}

func (c *ingestController) SubmitBatch(ctx *fiber.Ctx) error {
	var req dto.SubmitBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return faults.Wrap(faults.KindConfiguration, err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.queueService.SubmitBatch(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success submit import batch", res))
}

func (c *ingestController) BatchStatus(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return faults.Configuration("invalid batch id")
	}

	res, err := c.queueService.GetBatchStatus(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show batch status", res))
}
