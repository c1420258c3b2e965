// Package handler exposes the file-storage operations over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storeit/server/pkg/apperr"
	"github.com/storeit/server/pkg/middleware"
	"github.com/storeit/server/pkg/service"
	"github.com/storeit/server/pkg/types"
)

// API handles HTTP requests
type API struct {
	files *service.FileService
	auth  *middleware.Auth
}

// NewAPI creates a new API instance
func NewAPI(files *service.FileService, auth *middleware.Auth) *API {
	return &API{files: files, auth: auth}
}

// RegisterRoutes registers API routes
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(a.auth.Middleware())

	api.POST("/files", a.uploadFiles)
	api.GET("/files", a.listFiles)
	api.GET("/files/:id", a.getFile)
	api.PATCH("/files/:id/name", a.renameFile)
	api.PATCH("/files/:id/share", a.shareFile)
	api.DELETE("/files/:id", a.deleteFile)
	api.GET("/usage", a.usage)

	uploads := router.Group("/uploads")
	uploads.Use(a.auth.Middleware())
	uploads.GET("/:owner/:name", a.downloadFile)
}

// uploadFiles accepts one or more files from a multipart form. Files in a
// batch are independent: the response reports a per-file outcome and the
// request as a whole succeeds if at least one file does.
func (a *API) uploadFiles(c *gin.Context) {
	owner := middleware.OwnerID(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Message: "No files provided",
			Error:   err.Error(),
		})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Message: "No files provided",
		})
		return
	}

	batch := make([]service.BatchFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Message: "Failed to read upload",
				Error:   err.Error(),
			})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Message: "Failed to read upload",
				Error:   err.Error(),
			})
			return
		}
		batch = append(batch, service.BatchFile{Name: h.Filename, Data: data})
	}

	// A single file gets the precise status of its outcome; a batch always
	// reports per-file outcomes.
	if len(batch) == 1 {
		rec, err := a.files.Upload(c.Request.Context(), owner, batch[0].Name, batch[0].Data)
		if err != nil {
			a.fail(c, "Failed to upload file", err)
			return
		}
		c.JSON(http.StatusOK, types.APIResponse{
			Success: true,
			Message: "File uploaded",
			Data:    []types.UploadResult{{Name: batch[0].Name, Success: true, Record: rec}},
		})
		return
	}

	results := a.files.UploadBatch(c.Request.Context(), owner, batch)

	anyOK := false
	for _, r := range results {
		if r.Success {
			anyOK = true
			break
		}
	}

	status := http.StatusOK
	if !anyOK {
		status = http.StatusBadRequest
	}
	c.JSON(status, types.APIResponse{
		Success: anyOK,
		Message: "Upload processed",
		Data:    results,
	})
}

// listFiles returns the caller's files plus files shared with them.
func (a *API) listFiles(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Message: "Invalid limit",
			})
			return
		}
		limit = v
	}

	records, err := a.files.List(c.Request.Context(), middleware.OwnerID(c), middleware.OwnerEmail(c), limit)
	if err != nil {
		a.fail(c, "Failed to list files", err)
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Data: records})
}

func (a *API) getFile(c *gin.Context) {
	rec, err := a.files.Get(c.Request.Context(), middleware.OwnerID(c), middleware.OwnerEmail(c), c.Param("id"))
	if err != nil {
		a.fail(c, "Failed to get file", err)
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Data: rec})
}

func (a *API) renameFile(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Message: "Invalid rename request",
			Error:   err.Error(),
		})
		return
	}

	rec, err := a.files.Rename(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.Name)
	if err != nil {
		a.fail(c, "Failed to rename file", err)
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Message: "File renamed", Data: rec})
}

func (a *API) shareFile(c *gin.Context) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Message: "Invalid share request",
			Error:   err.Error(),
		})
		return
	}

	rec, err := a.files.Share(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.Emails)
	if err != nil {
		a.fail(c, "Failed to share file", err)
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Message: "File shared", Data: rec})
}

func (a *API) deleteFile(c *gin.Context) {
	if err := a.files.Delete(c.Request.Context(), middleware.OwnerID(c), c.Param("id")); err != nil {
		a.fail(c, "Failed to delete file", err)
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Message: "File deleted"})
}

func (a *API) usage(c *gin.Context) {
	report, err := a.files.Usage(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		a.fail(c, "Failed to compute usage", err)
		return
	}
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Data: report})
}

// downloadFile serves raw bytes from /uploads/{owner}/{name}; the caller
// must be the owner or on the file's share list.
func (a *API) downloadFile(c *gin.Context) {
	data, err := a.files.Download(c.Request.Context(),
		middleware.OwnerID(c), middleware.OwnerEmail(c),
		c.Param("owner"), c.Param("name"))
	if err != nil {
		a.fail(c, "Failed to fetch file", err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (a *API) fail(c *gin.Context, msg string, err error) {
	c.JSON(statusFor(err), types.APIResponse{
		Success: false,
		Message: msg,
		Error:   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
