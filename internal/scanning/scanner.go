package scanning

import (
	"context"
	"errors"
)

// ErrNoText is returned when the OCR service answers but finds no readable text.
var ErrNoText = errors.New("no text found in image")

// ErrUnsupportedImage is returned when an upload cannot be turned into an image
// the OCR service accepts.
var ErrUnsupportedImage = errors.New("unsupported image")

// Scanner turns a receipt image into its raw text
type Scanner interface {
	// ExtractText reads all text from a receipt image or PDF
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
