package controllers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

// HandleUpload stores the files of a multipart/form-data body. Optional to
// and from fields address the files to a device.
// POST /api/upload
func (ctrl *FilesController) HandleUpload(c *gin.Context) {
	mediaType, params, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("bad request"))
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxUploadBytes)
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			tool.DefaultLogger.Warnf("[Upload] Body from %s over %d bytes", c.ClientIP(), tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, tool.FastReturnError("upload too large"))
			return
		}
		tool.DefaultLogger.Debugf("[Upload] Failed to read body from %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read request body"))
		return
	}

	saved, err := ctrl.router.Upload(raw, params["boundary"])
	if err != nil {
		tool.DefaultLogger.Errorf("[Upload] %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to save upload"))
		return
	}

	resp := types.UploadResponse{Saved: make([]string, 0, len(saved))}
	for _, f := range saved {
		resp.Saved = append(resp.Saved, f.Name)
	}
	c.JSON(http.StatusOK, resp)
}
