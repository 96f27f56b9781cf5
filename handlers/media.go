package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sync"

	"report-service/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Uploader stores one object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
}

type MediaHandler struct {
	store Uploader
}

func NewMediaHandler(store Uploader) *MediaHandler {
	return &MediaHandler{store: store}
}

// UploadReportMedia uploads a batch of image/video files plus an
// optional audio file. Uploads fan out concurrently and are best
// effort: a failed file is logged and skipped, the rest still succeed.
// The response carries attempted vs. uploaded counts so the client can
// tell a partial success apart from a full one.
func (h *MediaHandler) UploadReportMedia(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		badRequest(c, "User ID is required")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		log.Errorf("Failed to parse multipart form: %v", err)
		badRequest(c, "Invalid multipart form")
		return
	}
	mediaFiles := form.File["mediaFiles"]
	audioFiles := form.File["audioFile"]

	attempted := len(mediaFiles)
	if len(audioFiles) > 0 {
		attempted++
	}

	// Fan out one upload per file, keeping results in input order.
	mediaResults := make([]string, len(mediaFiles))
	var audioURL *string
	var wg sync.WaitGroup
	for i, fh := range mediaFiles {
		wg.Add(1)
		go func(i int, fh *multipart.FileHeader) {
			defer wg.Done()
			url, err := h.uploadOne(c.Request.Context(), userID, fh)
			if err != nil {
				log.Errorf("Failed to upload media file %s: %v", fh.Filename, err)
				return
			}
			mediaResults[i] = url
		}(i, fh)
	}
	if len(audioFiles) > 0 {
		wg.Add(1)
		go func(fh *multipart.FileHeader) {
			defer wg.Done()
			url, err := h.uploadOne(c.Request.Context(), userID, fh)
			if err != nil {
				log.Errorf("Failed to upload audio file %s: %v", fh.Filename, err)
				return
			}
			audioURL = &url
		}(audioFiles[0])
	}
	wg.Wait()

	mediaURLs := []string{}
	for _, url := range mediaResults {
		if url != "" {
			mediaURLs = append(mediaURLs, url)
		}
	}
	uploaded := len(mediaURLs)
	if audioURL != nil {
		uploaded++
	}
	log.Infof("Uploaded %d of %d media files for user %s", uploaded, attempted, userID)

	c.JSON(http.StatusOK, models.MediaUploadResponse{
		Success:   true,
		Message:   "Media files uploaded successfully",
		MediaURLs: mediaURLs,
		AudioURL:  audioURL,
		Attempted: attempted,
		Uploaded:  uploaded,
	})
}

// UploadSingleMedia uploads one file and returns its URL.
func (h *MediaHandler) UploadSingleMedia(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		badRequest(c, "User ID is required")
		return
	}

	fh, err := c.FormFile("mediaFile")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}

	url, err := h.uploadOne(c.Request.Context(), userID, fh)
	if err != nil {
		log.Errorf("Failed to upload media file %s: %v", fh.Filename, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Message: "Failed to upload file to cloud storage",
		})
		return
	}

	c.JSON(http.StatusOK, models.SingleUploadResponse{
		Success:  true,
		Message:  "Media file uploaded successfully",
		MediaURL: url,
	})
}

func (h *MediaHandler) uploadOne(ctx context.Context, userID string, fh *multipart.FileHeader) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	objectName := "reports/" + userID + "/" + uuid.NewString() + filepath.Ext(fh.Filename)
	return h.store.Upload(ctx, objectName, file, fh.Size, fh.Header.Get("Content-Type"))
}
