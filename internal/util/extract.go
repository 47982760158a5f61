package util

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"

	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/gen2brain/go-fitz"
)

var ErrNoText = errors.New("no text extracted from PDF")

// ExtractPDFText returns the text layer of a PDF document. Scanned documents
// without a text layer go through Tesseract OCR when it is installed.
func ExtractPDFText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	var text strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		page, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("page %d: extract text: %w", n+1, err)
		}
		if page = strings.TrimSpace(page); page != "" {
			text.WriteString(page)
			text.WriteString("\n\n")
		}
	}
	if result := strings.TrimSpace(text.String()); result != "" {
		return result, nil
	}

	if err := checkTesseract(); err != nil {
		return "", fmt.Errorf("%w: no text layer and %v", ErrNoText, err)
	}
	return extractOCR(doc)
}

func extractOCR(doc *fitz.Document) (string, error) {
	log := logging.Component("pdf")
	var fullText bytes.Buffer
	var lastErr error

	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.Image(n)
		if err != nil {
			lastErr = fmt.Errorf("page %d: extract image: %w", n+1, err)
			log.Warn().Err(lastErr).Msg("OCR page skipped")
			continue
		}
		pageText, err := ocrPage(img)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", n+1, err)
			log.Warn().Err(lastErr).Msg("OCR page skipped")
			continue
		}
		if pageText != "" {
			fullText.WriteString(pageText)
			fullText.WriteString("\n\n")
		}
	}

	result := strings.TrimSpace(fullText.String())
	if result == "" {
		if lastErr != nil {
			return "", fmt.Errorf("%w: %v", ErrNoText, lastErr)
		}
		return "", ErrNoText
	}
	log.Debug().Int("chars", len(result)).Int("pages", doc.NumPage()).Msg("PDF text extracted with OCR")
	return result, nil
}

func ocrPage(img image.Image) (string, error) {
	tmpFile, err := os.CreateTemp("", "page-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	err = png.Encode(tmpFile, img)
	tmpFile.Close()
	if err != nil {
		return "", fmt.Errorf("encode PNG: %w", err)
	}

	out, err := exec.Command("tesseract", tmpPath, "stdout", "-l", "fra+eng").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w, output: %s", err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func checkTesseract() error {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return fmt.Errorf("tesseract not found: %w", err)
	}
	return nil
}
