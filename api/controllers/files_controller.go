package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/store"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/transfer"
)

// FilesController serves the shared directory: listing, download, upload
// and delete.
type FilesController struct {
	router         *transfer.Router
	maxUploadBytes int64
}

func NewFilesController(router *transfer.Router, maxUploadBytes int64) *FilesController {
	return &FilesController{router: router, maxUploadBytes: maxUploadBytes}
}

// HandleList returns the shared files sorted by name.
// GET /api/files
func (ctrl *FilesController) HandleList(c *gin.Context) {
	files, err := ctrl.router.List()
	if err != nil {
		tool.DefaultLogger.Errorf("[Files] %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to list files"))
		return
	}
	c.JSON(http.StatusOK, files)
}

// HandleDelete removes one shared file.
// DELETE /api/delete/<name>
func (ctrl *FilesController) HandleDelete(c *gin.Context) {
	err := ctrl.router.Delete(wildcardName(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, tool.FastReturnOK())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidName):
		c.JSON(http.StatusNotFound, tool.FastReturnError("not found"))
	default:
		tool.DefaultLogger.Errorf("[Delete] %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to delete file"))
	}
}

// wildcardName returns the *name route parameter without its leading slash.
func wildcardName(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("name"), "/")
}
