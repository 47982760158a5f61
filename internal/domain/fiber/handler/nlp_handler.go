package handler

import (
	"strings"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/usecase"
	"github.com/fadilmartias/jobmatch/internal/util"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type NLPHandler struct {
	uc     *usecase.PipelineUsecase
	offers OfferReader
}

func NewNLPHandler(uc *usecase.PipelineUsecase, offers OfferReader) *NLPHandler {
	return &NLPHandler{uc: uc, offers: offers}
}

func (h *NLPHandler) RegisterRoutes(app *fiber.App) {
	nlp := app.Group("/nlp")
	nlp.Get("/models", h.Models)
	nlp.Post("/fit-tfidf", h.submit(model.RunKindFitTFIDF))
	nlp.Post("/fit-kmeans", h.submit(model.RunKindFitKMeans))
	nlp.Post("/process", h.submit(model.RunKindProcess))

	app.Get("/runs", h.Runs)
	app.Get("/runs/:id", h.Run)

	app.Get("/clusters", h.Clusters)
	app.Get("/clusters/plot", h.Plot)
	app.Post("/clusters/rename", h.Rename)
}

func (h *NLPHandler) Models(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success list models",
		Data:    h.uc.Models(),
	})
}

// submit starts a background run. fit-kmeans reads k and process reads
// source from the query string.
func (h *NLPHandler) submit(kind string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params := usecase.RunParams{Source: strings.ToUpper(c.Query("source"))}
		if kind == model.RunKindFitKMeans {
			params.K = c.QueryInt("k", 0)
			if params.K < 0 {
				return badRequest(c, "k must be positive", nil)
			}
		}
		if params.Source != "" && params.Source != model.SourceAPEC && params.Source != model.SourceNTNE {
			return badRequest(c, "source must be NTNE or APEC", nil)
		}
		run, err := h.uc.Submit(c.UserContext(), kind, params)
		if err != nil {
			return fail(c, "failed to submit "+kind, err)
		}
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Code:    fiber.StatusAccepted,
			Message: "Success submit " + kind,
			Data:    dto.NewPipelineRunDTO(run),
		})
	}
}

func (h *NLPHandler) Runs(c *fiber.Ctx) error {
	runs, err := h.uc.ListRuns(c.UserContext(), c.Query("kind"), c.QueryInt("limit", 20))
	if err != nil {
		return fail(c, "failed to list runs", err)
	}
	out := make([]dto.PipelineRunDTO, len(runs))
	for i := range runs {
		out[i] = dto.NewPipelineRunDTO(&runs[i])
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success list runs",
		Data:    out,
	})
}

func (h *NLPHandler) Run(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return badRequest(c, "invalid run id", err)
	}
	run, err := h.uc.GetRun(c.UserContext(), id)
	if err != nil {
		return fail(c, "run not found", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get run",
		Data:    dto.NewPipelineRunDTO(run),
	})
}

func (h *NLPHandler) Clusters(c *fiber.Ctx) error {
	clusters, err := h.offers.Clusters(c.UserContext())
	if err != nil {
		return fail(c, "failed to list clusters", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success list clusters",
		Data:    clusters,
	})
}

func (h *NLPHandler) Plot(c *fiber.Ctx) error {
	points, err := h.offers.PlotPoints(c.UserContext())
	if err != nil {
		return fail(c, "failed to load plot points", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success load plot points",
		Data:    points,
	})
}

func (h *NLPHandler) Rename(c *fiber.Ctx) error {
	n, err := h.uc.RenameClusters(c.UserContext())
	if err != nil {
		return fail(c, "failed to rename clusters", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success rename clusters",
		Data:    fiber.Map{"named": n},
	})
}
