package handlers

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"biteback/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	MaxImageBytes    = 8 * 1024 * 1024
	stepFieldPrefix  = "step"
	imageFormField   = "image"
	payloadFormField = "data"
)

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// formImage reads an optional uploaded file. A missing field returns nil.
func formImage(c *fiber.Ctx, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload "+field)
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload "+field)
	}
	if len(image) > MaxImageBytes {
		return nil, fiber.ErrRequestEntityTooLarge
	}

	return image, nil
}

// stepUploads collects the step0..stepN files of a multipart wizard submit.
func stepUploads(c *fiber.Ctx) ([]services.ProofUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "multipart form required")
	}

	var indexes []int
	for field := range form.File {
		index, ok := stepIndex(field)
		if !ok {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unexpected upload field %q", field))
		}
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	uploads := make([]services.ProofUpload, 0, len(indexes))
	for _, index := range indexes {
		image, err := formImage(c, stepFieldPrefix+strconv.Itoa(index))
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, services.ProofUpload{StepIndex: index, Image: image})
	}

	return uploads, nil
}

// stepIndex accepts only canonical names: step0, step1, ... with no sign or
// leading zeros, so the field always reads back under the same name.
func stepIndex(field string) (int, bool) {
	suffix, found := strings.CutPrefix(field, stepFieldPrefix)
	if !found {
		return 0, false
	}

	index, err := strconv.Atoi(suffix)
	if err != nil || index < 0 || strconv.Itoa(index) != suffix {
		return 0, false
	}

	return index, true
}
