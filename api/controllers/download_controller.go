package controllers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/store"
	"github.com/moyoez/snapshare/tool"
)

// HandleDownload streams one shared file as an attachment.
// GET /download/<name>
func (ctrl *FilesController) HandleDownload(c *gin.Context) {
	f, meta, contentType, err := ctrl.router.Open(wildcardName(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
			c.JSON(http.StatusNotFound, tool.FastReturnError("not found"))
			return
		}
		tool.DefaultLogger.Errorf("[Download] %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to open file"))
		return
	}
	defer f.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": meta.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	tool.DefaultLogger.Infof("[Download] %s (%d bytes) to %s", meta.Name, meta.Size, c.ClientIP())
	c.DataFromReader(http.StatusOK, meta.Size, contentType, f, map[string]string{
		"Content-Disposition": disposition,
		"Last-Modified":       meta.ModTime.UTC().Format(http.TimeFormat),
	})
	metrics.RecordDownload(meta.Size)
}
