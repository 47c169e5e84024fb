package ui

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"

	"gradegrid/internal/gateway"
	apperrors "gradegrid/internal/errors"

	"github.com/gin-gonic/gin"
)

const uploadField = "file"

func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, "index.html", gin.H{
		"Title":        s.config.Title,
		"Instructions": s.instructions,
		"MaxUploadMB":  s.config.MaxUploadBytes / (1024 * 1024),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleUpload streams the transformed workbook back as an attachment. The
// staged files are removed once the response has been written.
func (s *Server) handleUpload(c *gin.Context) {
	up, release, ok := s.receiveUpload(c, func(status int, message string) {
		c.String(status, message)
	})
	if !ok {
		return
	}
	defer release()

	artifact, err := s.pipeline.Process(c.Request.Context(), up)
	if err != nil {
		log.Printf("[Upload] FAILED - %q [%s]: %v", up.Filename, apperrors.GetCode(err), err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			log.Printf("[Upload] FAILED - Cleanup of %s: %v", artifact.Path, err)
		}
	}()

	c.Header("Content-Type", artifact.ContentType)
	c.FileAttachment(artifact.Path, artifact.DownloadName)
}

func (s *Server) handlePreview(c *gin.Context) {
	up, release, ok := s.receiveUpload(c, func(status int, message string) {
		c.JSON(status, gin.H{"error": message})
	})
	if !ok {
		return
	}
	defer release()

	preview, err := s.pipeline.Preview(c.Request.Context(), up)
	if err != nil {
		code := apperrors.GetCode(err)
		log.Printf("[Preview] FAILED - %q [%s]: %v", up.Filename, code, err)
		if isInputError(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "The file is not a readable semester grade sheet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (s *Server) handleWindowOpened(c *gin.Context) {
	s.heartbeat.Opened()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWindowClosed(c *gin.Context) {
	s.heartbeat.Closed()
	c.Status(http.StatusNoContent)
}

// receiveUpload reads the multipart file field under the upload limit. On
// failure it has already responded through reject.
func (s *Server) receiveUpload(c *gin.Context, reject func(status int, message string)) (gateway.Upload, func(), bool) {
	if s.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)
	}

	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			log.Printf("[Upload] Rejected upload over %d bytes", tooLarge.Limit)
			reject(http.StatusRequestEntityTooLarge, "File too large")
		case errors.Is(err, http.ErrMissingFile):
			reject(http.StatusBadRequest, "No file uploaded")
		default:
			log.Printf("[Upload] FAILED - Reading multipart form: %v", err)
			reject(http.StatusBadRequest, "Invalid upload")
		}
		return gateway.Upload{}, nil, false
	}

	file, err := header.Open()
	if err != nil {
		log.Printf("[Upload] FAILED - Opening %q: %v", header.Filename, err)
		reject(http.StatusInternalServerError, "Internal Server Error")
		return gateway.Upload{}, nil, false
	}

	release := func() {
		closeUpload(file)
		if form := c.Request.MultipartForm; form != nil {
			_ = form.RemoveAll()
		}
	}
	return gateway.Upload{Filename: header.Filename, Size: header.Size, Body: file}, release, true
}

func closeUpload(file multipart.File) {
	if err := file.Close(); err != nil {
		log.Printf("[Upload] Closing upload: %v", err)
	}
}

func isInputError(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeMalformedGrid) ||
		apperrors.HasCode(err, apperrors.CodeDecodeError) ||
		apperrors.HasCode(err, apperrors.CodeInvalidInput)
}
