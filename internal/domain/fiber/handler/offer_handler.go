package handler

import (
	"bytes"
	"context"
	"strings"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/ingest"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/response"
	"github.com/fadilmartias/jobmatch/internal/usecase"
	"github.com/fadilmartias/jobmatch/internal/util"
	"github.com/fadilmartias/jobmatch/internal/validation"
	"github.com/gofiber/fiber/v2"
)

// OfferReader is the read side of the offer repository used by the API.
type OfferReader interface {
	FindOffer(ctx context.Context, id int64) (*model.Offer, error)
	Latest(ctx context.Context, f dto.OfferFilter, limit, offset int) ([]model.Offer, int64, error)
	PlotPoints(ctx context.Context) ([]dto.PlotPointDTO, error)
	Clusters(ctx context.Context) ([]dto.ClusterDTO, error)
}

type OfferHandler struct {
	uc     *usecase.PipelineUsecase
	offers OfferReader
}

func NewOfferHandler(uc *usecase.PipelineUsecase, offers OfferReader) *OfferHandler {
	return &OfferHandler{uc: uc, offers: offers}
}

func (h *OfferHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/offers", h.List)
	app.Post("/offers", h.Create)
	app.Get("/offers/info/:source", h.Info)
	app.Post("/offers/sync/:source", h.Sync)
	app.Get("/offers/:id<int>", h.Get)
}

type listQuery struct {
	dto.OfferFilter
	Page     int `query:"page" validate:"omitempty,gte=1"`
	PageSize int `query:"page_size" validate:"omitempty,gte=1,lte=200"`
}

func (h *OfferHandler) List(c *fiber.Ctx) error {
	var q listQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "invalid query parameters", err)
	}
	if err := validation.ValidateStruct(&q); err != nil {
		return fail(c, "invalid query parameters", err)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}
	offers, total, err := h.offers.Latest(c.UserContext(), q.OfferFilter, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return fail(c, "failed to list offers", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message:    "Success list offers",
		Data:       dto.NewOfferDTOs(offers),
		Pagination: response.NewPagination(q.Page, q.PageSize, total, len(offers)),
	})
}

func (h *OfferHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "invalid offer id", err)
	}
	offer, err := h.offers.FindOffer(c.UserContext(), int64(id))
	if err != nil {
		return fail(c, "offer not found", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get offer",
		Data:    dto.NewOfferDTO(*offer),
	})
}

func (h *OfferHandler) Create(c *fiber.Ctx) error {
	var p dto.OfferPayload
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "invalid offer payload", err)
	}
	id, inserted, err := h.uc.AddOffer(c.UserContext(), p)
	if err != nil {
		return fail(c, "failed to add offer", err)
	}
	code, message := fiber.StatusCreated, "Success add offer"
	if !inserted {
		code, message = fiber.StatusOK, "Offer already stored"
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    code,
		Message: message,
		Data:    fiber.Map{"id": id, "inserted": inserted},
	})
}

func sourceParam(c *fiber.Ctx) (string, bool) {
	source := strings.ToUpper(c.Params("source"))
	return source, source == model.SourceAPEC || source == model.SourceNTNE
}

func (h *OfferHandler) Info(c *fiber.Ctx) error {
	source, ok := sourceParam(c)
	if !ok && strings.ToLower(c.Params("source")) != "all" {
		return badRequest(c, "source must be NTNE, APEC or all", nil)
	}
	if !ok {
		source = ""
	}
	info, err := h.uc.SourceInfo(c.UserContext(), source)
	if err != nil {
		return fail(c, "failed to get source info", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get source info",
		Data:    info,
	})
}

// Sync ingests a JSON-lines upload, either the "file" form field or the raw
// request body, in the background.
func (h *OfferHandler) Sync(c *fiber.Ctx) error {
	source, ok := sourceParam(c)
	if !ok {
		return badRequest(c, "source must be NTNE or APEC", nil)
	}
	var data []byte
	if file, err := c.FormFile("file"); err == nil {
		if data, err = readUpload(file); err != nil {
			return fail(c, "cannot read offers file", err)
		}
	} else {
		data = bytes.Clone(c.Body())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return badRequest(c, "offers file is required", nil)
	}

	run, err := h.uc.SubmitSync(c.UserContext(), ingest.NewJSONLReader(source, bytes.NewReader(data)))
	if err != nil {
		return fail(c, "failed to submit sync", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: "Success submit sync",
		Data:    dto.NewPipelineRunDTO(run),
	})
}
