package handler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/search"
	"github.com/fadilmartias/jobmatch/internal/util"
	"github.com/fadilmartias/jobmatch/internal/validation"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

type SearchHandler struct {
	engine    Searcher
	pdfToText func([]byte) (string, error)
}

func NewSearchHandler(engine Searcher) *SearchHandler {
	return &SearchHandler{engine: engine, pdfToText: util.ExtractPDFText}
}

func (h *SearchHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/search", h.Search)
}

// Search accepts a JSON body, or a multipart form with an optional "request"
// JSON field, a "query" field and a "resume" PDF.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	var req dto.SearchRequest
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		if err := h.parseForm(c, &req); err != nil {
			return fail(c, "invalid search form", err)
		}
	} else if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid search payload", err)
		}
	}
	if err := validation.ValidateStruct(&req); err != nil {
		return fail(c, "invalid search payload", err)
	}

	result, err := h.engine.Search(c.UserContext(), search.Request{
		Query:    req.Query,
		Resume:   req.Resume,
		Feedback: req.Feedback,
		Filters:  req.Filters,
		Limit:    req.Limit,
	})
	if err != nil {
		return fail(c, "search failed", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success search offers",
		Data:    newSearchResponse(result),
		Meta:    fiber.Map{"epoch": result.Epoch, "count": len(result.Hits)},
	})
}

func (h *SearchHandler) parseForm(c *fiber.Ctx, req *dto.SearchRequest) error {
	if raw := c.FormValue("request"); raw != "" {
		if err := json.Unmarshal([]byte(raw), req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "request field is not valid JSON")
		}
	}
	if q := c.FormValue("query"); q != "" {
		req.Query = q
	}
	file, err := c.FormFile("resume")
	if err != nil {
		return nil
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "resume must be a PDF")
	}
	data, err := readUpload(file)
	if err != nil {
		return err
	}
	text, err := h.pdfToText(data)
	if err != nil {
		return err
	}
	req.Resume = text
	return nil
}

func newSearchResponse(result *search.Result) dto.SearchResponse {
	out := dto.SearchResponse{Mode: string(result.Mode), Hits: make([]dto.SearchHit, len(result.Hits))}
	for i, hit := range result.Hits {
		out.Hits[i] = dto.SearchHit{Offer: dto.NewOfferDTO(hit.Offer), Score: hit.Score}
		if hit.Distance != nil {
			display := search.DisplayScore(*hit.Distance)
			out.Hits[i].DisplayScore = &display
		}
	}
	return out
}
