package shared

// Task types processed by the worker
const (
	TypeDeleteBookImage   = "book:delete_image"
	TypeSweepOrphanImages = "book:sweep_orphan_images"
)

// Queue names and their weights in the asynq server
const (
	QueueDefault     = "default"
	QueueMaintenance = "low"
)

// Gin context keys shared by middlewares and handlers
const (
	ContextKeyUserID        = "userID"
	ContextKeyRequestID     = "request_id"
	ContextKeyUploadedImage = "uploadedImage"
)

// DeleteImagePayload is the payload of TypeDeleteBookImage.
type DeleteImagePayload struct {
	Filename string `json:"filename"`
}
