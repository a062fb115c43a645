package middleware

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/infrastructure/storage"
	"grimoire-backend/internal/shared"
	"grimoire-backend/internal/shared/response"
	"grimoire-backend/internal/shared/utils"
)

const (
	ImageFormField = "image"

	// room for the other form fields on top of the image itself
	multipartOverhead = 1 << 20
	maxFilenameBase   = 50
)

// UploadedImage is the stored cover produced by ImageUpload.
type UploadedImage struct {
	Filename string
	URL      string
}

type UploadConfig struct {
	Storage   storage.ObjectStorage
	Processor *storage.ImageProcessor
	// PublicBaseURL prefixes image URLs; empty derives it from the request.
	PublicBaseURL string
	MaxBytes      int64
	// Required rejects requests without an image part.
	Required bool
	Now      func() time.Time
}

// ImageUpload reads the "image" multipart part, converts it to the cover
// format, stores it and exposes an UploadedImage to the handler.
func ImageUpload(cfg UploadConfig) gin.HandlerFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = cfg.Processor.MaxSize
	}

	return func(c *gin.Context) {
		if !isMultipart(c.Request) {
			if cfg.Required {
				response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "image file is required")
				return
			}
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBytes+multipartOverhead)
		if err := c.Request.ParseMultipartForm(cfg.MaxBytes + multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "image too large")
				return
			}
			response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form")
			return
		}

		file, header, err := c.Request.FormFile(ImageFormField)
		if errors.Is(err, http.ErrMissingFile) {
			if cfg.Required {
				response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "image file is required")
				return
			}
			c.Next()
			return
		}
		if err != nil {
			response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid image part")
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxBytes {
			response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "image too large")
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxBytes+1))
		if err != nil {
			response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "cannot read image")
			return
		}

		cover, err := cfg.Processor.ProcessCover(data)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrImageTooLarge):
				response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "image too large")
			case errors.Is(err, storage.ErrUnsupportedFormat):
				response.AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "unsupported image format (jpeg, png, gif, webp)")
			default:
				log.Error().Err(err).Msg("Failed to process uploaded image")
				response.AbortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to process image")
			}
			return
		}

		filename := BuildImageFilename(header.Filename, cfg.Now())
		if err := cfg.Storage.Put(c.Request.Context(), filename, cover, storage.CoverContentType); err != nil {
			log.Error().Err(err).Str("filename", filename).Msg("Failed to store uploaded image")
			response.AbortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to store image")
			return
		}

		c.Set(shared.ContextKeyUploadedImage, UploadedImage{
			Filename: filename,
			URL:      PublicImageURL(c, cfg.PublicBaseURL, filename),
		})

		log.Debug().
			Str("filename", filename).
			Int("original_bytes", len(data)).
			Int("stored_bytes", len(cover)).
			Msg("Image uploaded")

		c.Next()
	}
}

// GetUploadedImage returns the image stored by ImageUpload for this request.
func GetUploadedImage(c *gin.Context) (UploadedImage, bool) {
	v, exists := c.Get(shared.ContextKeyUploadedImage)
	if !exists {
		return UploadedImage{}, false
	}
	img, ok := v.(UploadedImage)
	return img, ok
}

// BuildImageFilename gives every upload a unique, URL safe name:
// <sanitized base>_<unix millis>_<random>.jpg
func BuildImageFilename(original string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = sanitizeFilenameBase(base)
	if base == "" {
		base = "cover"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s%s", base, now.UnixMilli(), suffix, storage.CoverExtension)
}

func sanitizeFilenameBase(s string) string {
	slug := utils.GenerateSlug(s)
	if len(slug) > maxFilenameBase {
		slug = strings.Trim(slug[:maxFilenameBase], "_-")
	}
	return slug
}

// PublicImageURL builds the absolute URL clients use to fetch filename.
func PublicImageURL(c *gin.Context, publicBaseURL, filename string) string {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/images/" + filename
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
