package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/fadilmartias/jobmatch/internal/repository"
	"github.com/fadilmartias/jobmatch/internal/util"
	"github.com/fadilmartias/jobmatch/internal/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const maxUploadSize = 5 * 1024 * 1024

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *validation.RequestValidationError
	var ferr *fiber.Error
	switch {
	case errors.As(err, &ferr):
		return ferr.Code
	case errors.As(err, &verr), errors.Is(err, util.ErrNoText), errors.Is(err, nlp.ErrInvalidClusterCount):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, nlp.ErrModelNotFit), errors.Is(err, nlp.ErrStaleModel):
		return fiber.StatusConflict
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, repository.ErrOfferNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, message string, err error) error {
	params := util.ErrorResponseFormat{Code: statusFor(err), Message: message}
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		params.Details = verr.Fields()
	}
	return util.ErrorResponse(c, params, err)
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	return util.ErrorResponse(c, util.ErrorResponseFormat{Code: fiber.StatusBadRequest, Message: message}, err)
}

// readUpload reads a multipart file fully into memory.
func readUpload(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxUploadSize {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("%s is too large (max 5MB)", file.Filename))
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
