package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFormat is returned for content types the extractor
	// does not handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnsupportedEncoding is returned when a plain text payload is not
	// valid UTF-8.
	ErrUnsupportedEncoding = errors.New("text payload is not valid UTF-8")
	// ErrExtractionFailed is returned when a parser or recognizer fails or
	// produces no usable text.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Recognizer produces text from an image payload. Implemented by the OCR
// service client.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Extractor converts raw submission payloads into UTF-8 text. It holds no
// state of its own beyond its collaborators and never touches the
// submission record.
type Extractor struct {
	recognizer Recognizer
	logger     *zap.Logger
}

func New(recognizer Recognizer, logger *zap.Logger) *Extractor {
	return &Extractor{recognizer: recognizer, logger: logger}
}

// Extract dispatches on the declared content type.
func (e *Extractor) Extract(ctx context.Context, contentType string, data []byte) (string, error) {
	switch normalizeContentType(contentType) {
	case "text/plain":
		return e.extractPlainText(data)
	case "application/pdf":
		return e.extractPDF(data)
	case "image/png", "image/jpeg":
		return e.extractImage(ctx, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
}

func (e *Extractor) extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrUnsupportedEncoding
	}
	return string(data), nil
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	text, err := extractPDFText(data)
	if err != nil {
		e.logger.Error("PDF parsing failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: PDF contains no extractable text", ErrExtractionFailed)
	}
	return text, nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	text, err := e.recognizer.Recognize(ctx, data)
	if err != nil {
		e.logger.Error("OCR recognition failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return text, nil
}

// normalizeContentType strips parameters such as "; charset=utf-8".
func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
