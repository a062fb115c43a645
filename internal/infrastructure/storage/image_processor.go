package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Cover dimensions and quality of every stored image.
const (
	CoverWidth       = 463
	CoverHeight      = 595
	CoverQuality     = 60
	CoverContentType = "image/jpeg"
	CoverExtension   = ".jpg"
)

// Decoded size limits. A small compressed file can still expand to a huge
// pixel buffer, so dimensions are checked before the full decode.
const (
	MaxImageSide   = 10000
	MaxImagePixels = 40_000_000
)

var (
	ErrImageTooLarge     = errors.New("image too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// AllowedFormats are the decoder names accepted from clients.
var AllowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

type ImageProcessor struct {
	MaxSize int64 // bytes
}

func NewImageProcessor(maxSize int64) *ImageProcessor {
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &ImageProcessor{MaxSize: maxSize}
}

// ValidateImage checks the byte size, the format and the decoded dimensions.
func (p *ImageProcessor) ValidateImage(data []byte) error {
	if int64(len(data)) > p.MaxSize {
		return fmt.Errorf("%w: exceeds %d bytes", ErrImageTooLarge, p.MaxSize)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !AllowedFormats[format] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide ||
		int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// ProcessCover crops to the cover aspect ratio, resizes and re-encodes as JPEG.
func (p *ImageProcessor) ProcessCover(data []byte) ([]byte, error) {
	if err := p.ValidateImage(data); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedFormat, err)
	}

	resized := imaging.Fill(img, CoverWidth, CoverHeight, imaging.Center, imaging.Lanczos)
	b := new(bytes.Buffer)
	if err := jpeg.Encode(b, resized, &jpeg.Options{Quality: CoverQuality}); err != nil {
		return nil, fmt.Errorf("cannot encode cover: %w", err)
	}
	return b.Bytes(), nil
}
