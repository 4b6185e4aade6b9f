package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

type InfoController struct {
	port int
}

func NewInfoController(port int) *InfoController {
	return &InfoController{port: port}
}

// HandleInfo tells clients which address to share with other devices.
// GET /api/info
func (ctrl *InfoController) HandleInfo(c *gin.Context) {
	ip := tool.PreferredLocalIP()
	c.JSON(http.StatusOK, types.ServerInfo{
		IP:   ip,
		Port: ctrl.port,
		URL:  fmt.Sprintf("http://%s:%d", ip, ctrl.port),
	})
}

// GET /health
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
