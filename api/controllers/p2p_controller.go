package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/p2p"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

// P2PController relays WebRTC signalling through short-lived rooms.
type P2PController struct {
	rooms *p2p.Rooms
}

func NewP2PController(rooms *p2p.Rooms) *P2PController {
	return &P2PController{rooms: rooms}
}

// POST /api/p2p/create
func (ctrl *P2PController) HandleCreate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"room": ctrl.rooms.Create()})
}

// POST /api/p2p/signal {"room","from","type","data"}
func (ctrl *P2PController) HandleSignal(c *gin.Context) {
	var req types.P2PSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("invalid json"))
		return
	}
	err := ctrl.rooms.Signal(req.Room, types.P2PSignal{From: req.From, Type: req.Type, Data: req.Data})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, tool.FastReturnOK())
	case errors.Is(err, p2p.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, tool.FastReturnError("room not found"))
	case errors.Is(err, p2p.ErrRoomFull):
		c.JSON(http.StatusConflict, tool.FastReturnError("room is full"))
	default:
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
	}
}

// GET /api/p2p/poll?room=&role=&since=
func (ctrl *P2PController) HandlePoll(c *gin.Context) {
	since, _ := strconv.Atoi(c.Query("since")) // bad values poll from the start
	signals, next, err := ctrl.rooms.Poll(c.Query("room"), c.Query("role"), since)
	if err != nil {
		c.JSON(http.StatusNotFound, tool.FastReturnError("room not found"))
		return
	}
	c.JSON(http.StatusOK, types.P2PPollResponse{Signals: signals, Index: next})
}
