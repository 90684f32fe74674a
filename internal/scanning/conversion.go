package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// preparedImage is an image in a format every OCR backend accepts
type preparedImage struct {
	Data      []byte
	MIMEType  string
	Converted bool
}

// format returns the bare format suffix ("png", "jpeg") used by genai.ImageData
func (p preparedImage) format() string {
	return strings.TrimPrefix(p.MIMEType, "image/")
}

// prepareImage normalizes the content type and converts anything that is not
// already JPEG or PNG into PNG. Phone uploads often arrive as HEIC or PDF.
func prepareImage(data []byte, contentType string) (preparedImage, error) {
	if len(data) == 0 {
		return preparedImage{}, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	mimeType := normalizeMIMEType(contentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	switch {
	case mimeType == "application/pdf":
		pngData, err := pdfToPNG(data)
		if err != nil {
			return preparedImage{}, fmt.Errorf("%w: converting PDF to image: %w", ErrUnsupportedImage, err)
		}
		return preparedImage{Data: pngData, MIMEType: "image/png", Converted: true}, nil
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return preparedImage{}, fmt.Errorf("%w: decoding HEIC/HEIF image: %w", ErrUnsupportedImage, err)
		}
		pngData, err := encodePNG(img)
		if err != nil {
			return preparedImage{}, err
		}
		return preparedImage{Data: pngData, MIMEType: "image/png", Converted: true}, nil
	case mimeType == "image/png" || mimeType == "image/jpeg":
		return preparedImage{Data: data, MIMEType: mimeType}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return preparedImage{}, fmt.Errorf("%w: format %q (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", ErrUnsupportedImage, mimeType, err)
	}
	// Mislabelled uploads that turn out to be JPEG/PNG go through untouched.
	switch format {
	case "jpeg":
		return preparedImage{Data: data, MIMEType: "image/jpeg"}, nil
	case "png":
		return preparedImage{Data: data, MIMEType: "image/png"}, nil
	}
	pngData, err := encodePNG(img)
	if err != nil {
		return preparedImage{}, err
	}
	return preparedImage{Data: pngData, MIMEType: "image/png", Converted: true}, nil
}

// pdfToPNG renders the first page of a PDF; receipts are single page
func pdfToPNG(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// normalizeMIMEType lowercases and strips parameters, mapping image/jpg to image/jpeg
func normalizeMIMEType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// isHEICFormat checks for an ftyp box with a HEIC/HEIF brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// jpegQuality is used when the Vision API needs a smaller payload than PNG gives
const jpegQuality = 90

// maxShrinkPasses bounds how many times fitImage halves an image
const maxShrinkPasses = 6

// fitImage re-encodes a PNG or JPEG as JPEG, halving its dimensions until the
// result fits in maxBytes. Images already under the limit are returned as is.
func fitImage(p preparedImage, maxBytes int) (preparedImage, error) {
	if len(p.Data) <= maxBytes {
		return p, nil
	}
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return preparedImage{}, fmt.Errorf("decoding %s: %w", p.MIMEType, err)
	}

	for pass := 0; ; pass++ {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return preparedImage{}, fmt.Errorf("encoding JPEG: %w", err)
		}
		if buf.Len() <= maxBytes {
			return preparedImage{Data: buf.Bytes(), MIMEType: "image/jpeg", Converted: true}, nil
		}
		b := img.Bounds()
		if pass == maxShrinkPasses || b.Dx() < 2 || b.Dy() < 2 {
			return preparedImage{}, fmt.Errorf("%w: image is %d bytes after %d resizes, limit is %d",
				ErrUnsupportedImage, buf.Len(), pass, maxBytes)
		}
		img = imaging.Resize(img, b.Dx()/2, 0, imaging.Lanczos)
	}
}
