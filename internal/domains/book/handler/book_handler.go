package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/internal/domains/book/service"
	"grimoire-backend/internal/infrastructure/storage"
	"grimoire-backend/internal/shared/middleware"
	"grimoire-backend/internal/shared/response"
)

// BookFormField carries the book JSON document in multipart requests.
const BookFormField = "book"

type Handler struct {
	service service.BookService
	images  service.ImageService
	storage storage.ObjectStorage
}

func NewHandler(bookService service.BookService, images service.ImageService, store storage.ObjectStorage) *Handler {
	return &Handler{
		service: bookService,
		images:  images,
		storage: store,
	}
}

// ListBooks - GET /api/books
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.service.ListBooks(c.Request.Context())
	if handleBookError(c, err) {
		return
	}
	response.Success(c, http.StatusOK, books)
}

// GetBook - GET /api/books/:id
func (h *Handler) GetBook(c *gin.Context) {
	book, err := h.service.GetBook(c.Request.Context(), c.Param("id"))
	if handleBookError(c, err) {
		return
	}
	response.Success(c, http.StatusOK, book)
}

// TopRated - GET /api/books/bestrating?limit=3
func (h *Handler) TopRated(c *gin.Context) {
	limit := model.DefaultTopRatedLimit
	if s := c.Query("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil {
			limit = l
		}
	}

	books, err := h.service.TopRated(c.Request.Context(), limit)
	if handleBookError(c, err) {
		return
	}
	response.Success(c, http.StatusOK, books)
}

// CreateBook - POST /api/books (multipart: book + image)
func (h *Handler) CreateBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	img, hasImage := middleware.GetUploadedImage(c)
	if !hasImage {
		handleBookError(c, model.ErrImageRequired)
		return
	}

	var req model.CreateBookRequest
	if err := decodeBookDocument(c, &req); err != nil {
		h.images.ScheduleDeletion(c.Request.Context(), img.URL)
		response.BadRequest(c, err.Error())
		return
	}

	book, err := h.service.CreateBook(c.Request.Context(), userID, req, img.URL)
	if handleBookError(c, err) {
		return
	}
	response.Success(c, http.StatusCreated, book)
}

// UpdateBook - PUT /api/books/:id (multipart with optional image, or JSON)
func (h *Handler) UpdateBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var newImageURL string
	if img, hasImage := middleware.GetUploadedImage(c); hasImage {
		newImageURL = img.URL
	}

	var req model.UpdateBookRequest
	var err error
	if c.Request.MultipartForm != nil {
		// an image-only update may omit the book document
		if c.PostForm(BookFormField) != "" {
			err = decodeBookDocument(c, &req)
		}
	} else {
		err = decodeJSONBody(c, &req)
	}
	if err != nil {
		if newImageURL != "" {
			h.images.ScheduleDeletion(c.Request.Context(), newImageURL)
		}
		response.BadRequest(c, err.Error())
		return
	}

	book, err := h.service.UpdateBook(c.Request.Context(), c.Param("id"), userID, req, newImageURL)
	if handleBookError(c, err) {
		return
	}
	response.Success(c, http.StatusOK, book)
}

// DeleteBook - DELETE /api/books/:id
func (h *Handler) DeleteBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	err := h.service.DeleteBook(c.Request.Context(), c.Param("id"), userID)
	if handleBookError(c, err) {
		return
	}
	response.Message(c, http.StatusOK, "Book deleted")
}

// RateBook - POST /api/books/:id/rating
func (h *Handler) RateBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.RatingRequest
	if err := decodeJSONBody(c, &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if handleBookError(c, req.Validate()) {
		return
	}
	if !req.RaterMatches(userID) {
		handleBookError(c, model.ErrRaterMismatch)
		return
	}

	book, err := h.service.AddRating(c.Request.Context(), c.Param("id"), userID, *req.Rating)
	if handleBookError(c, err) {
		return
	}
	response.Success(c, http.StatusOK, book)
}

// ServeImage - GET /images/:file and /api/images/:file
func (h *Handler) ServeImage(c *gin.Context) {
	filename := c.Param("file")

	rc, info, err := h.storage.Get(c.Request.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			response.NotFound(c, "Image not found")
			return
		}
		handleBookError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

// decodeBookDocument parses the JSON "book" form field of a multipart request.
func decodeBookDocument(c *gin.Context, dest interface{}) error {
	raw := strings.TrimSpace(c.PostForm(BookFormField))
	if raw == "" {
		return errors.New(`missing "book" form field`)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return errors.New(`"book" form field is not valid JSON: ` + err.Error())
	}
	return nil
}

func decodeJSONBody(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
