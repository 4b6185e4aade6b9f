package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/snapshare/stream"
	"github.com/moyoez/snapshare/tool"
)

var eventsWSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the CORS middleware
	},
}

type EventsController struct {
	streamer *stream.Streamer
}

func NewEventsController(streamer *stream.Streamer) *EventsController {
	return &EventsController{streamer: streamer}
}

// HandleEvents serves the device's event stream as server-sent events.
// GET /api/events?id=<id>
func (ctrl *EventsController) HandleEvents(c *gin.Context) {
	id := c.Query("id")
	if !validDeviceID(id) {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing id"))
		return
	}

	w, err := stream.NewSSEWriter(c.Writer)
	if err != nil {
		tool.DefaultLogger.Errorf("[Stream] %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Streaming unsupported"))
		return
	}
	sess, err := ctrl.streamer.Open(id, c.Request.UserAgent(), c.ClientIP(), w)
	if err != nil {
		// headers are out already, the client sees a closed stream
		tool.DefaultLogger.Debugf("[Stream] Open %s: %v", id, err)
		return
	}
	_ = sess.Run(c.Request.Context())
}

// HandleEventsWS serves the same frames over a WebSocket, one frame per
// text message.
// GET /api/events/ws?id=<id>
func (ctrl *EventsController) HandleEventsWS(c *gin.Context) {
	id := c.Query("id")
	if !validDeviceID(id) {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing id"))
		return
	}

	conn, err := eventsWSUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Debugf("[Stream] Failed to close WebSocket connection: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stream.WatchClose(conn, cancel)

	sess, err := ctrl.streamer.Open(id, c.Request.UserAgent(), c.ClientIP(), stream.NewWSWriter(conn))
	if err != nil {
		tool.DefaultLogger.Debugf("[Stream] Open %s: %v", id, err)
		return
	}
	_ = sess.Run(ctx)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
}
