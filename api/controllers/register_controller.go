package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/presence"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

// maxRegisterBody is far above any real {"id": ...} body.
const maxRegisterBody = 4 << 10

// validDeviceID accepts ids as sent, so the register and stream endpoints
// always name the same device. Blank ids and ids with surrounding whitespace
// are refused.
func validDeviceID(id string) bool {
	return id != "" && strings.TrimSpace(id) == id
}

type PresenceController struct {
	registry *presence.Registry
}

func NewPresenceController(registry *presence.Registry) *PresenceController {
	return &PresenceController{registry: registry}
}

// HandleRegister creates or refreshes the calling device.
// POST /api/register {"id": "..."}
func (ctrl *PresenceController) HandleRegister(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRegisterBody))
	if err != nil {
		tool.DefaultLogger.Errorf("[Register] Failed to read request body: %v", err)
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read request body"))
		return
	}

	var req types.RegisterRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		tool.DefaultLogger.Debugf("[Register] Invalid body from %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body"))
		return
	}
	if !validDeviceID(req.ID) {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing id"))
		return
	}

	info := ctrl.registry.Register(req.ID, c.Request.UserAgent(), c.ClientIP())
	tool.DefaultLogger.Infof("[Register] %s %s (%s, %s) from %s", info.Icon, info.Name, info.Type, info.ID, c.ClientIP())
	c.JSON(http.StatusOK, info)
}

// HandleGetDevice returns one device's identity.
// GET /api/device/:id
func (ctrl *PresenceController) HandleGetDevice(c *gin.Context) {
	info, ok := ctrl.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("device not found"))
		return
	}
	c.JSON(http.StatusOK, info)
}
