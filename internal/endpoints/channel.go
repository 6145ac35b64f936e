// Package endpoints provides the HTTP transport of the method channel
package endpoints

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/internal/middleware"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// keepAliveInterval is how often an idle event stream sends a comment line
const keepAliveInterval = 15 * time.Second

// ChannelHandler serves method calls and outward events over HTTP
type ChannelHandler struct {
	handler channel.Handler
	events  *EventStream
	metrics *metrics.Metrics
}

// NewChannelHandler creates a channel handler. m may be nil.
func NewChannelHandler(h channel.Handler, events *EventStream, m *metrics.Metrics) *ChannelHandler {
	return &ChannelHandler{handler: h, events: events, metrics: m}
}

// Call handles POST /v1/channel/:method. The JSON body is the call's
// arguments; an empty body means no arguments.
//
// Replies: 200 {"result":…}, 400 {"error":{code,message,details}},
// 501 {"notImplemented":true}, 202 with no body when the call is dropped.
func (h *ChannelHandler) Call(c *gin.Context) {
	method := c.Param("method")
	if method == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing method"})
		return
	}

	args, err := readArguments(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		log := logger.Channel()
		log.Warn().Err(err).Str("method", method).Msg("Invalid JSON in method call")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON in request body"})
		return
	}

	ctx := logger.WithCallID(c.Request.Context(), middleware.RequestID(c))
	reply := channel.Invoke(ctx, h.handler, &channel.MethodCall{Method: method, Arguments: args}, h.metrics)

	switch {
	case reply.Dropped:
		c.Status(http.StatusAccepted)
	case reply.NotImplemented:
		c.JSON(http.StatusNotImplemented, gin.H{"notImplemented": true})
	case reply.Error != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": reply.Error})
	default:
		c.JSON(http.StatusOK, gin.H{"result": reply.Result})
	}
}

func readArguments(body io.Reader) (any, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var args any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Events handles GET /v1/channel/events as a server-sent event stream.
// Each outward event is sent with the event name "method" and the JSON
// encoded channel.Event as data.
func (h *ChannelHandler) Events(c *gin.Context) {
	sub := h.events.Subscribe()
	defer sub.Cancel()

	log := logger.Channel()
	log.Info().Str("remote_addr", c.ClientIP()).Msg("Event stream subscriber connected")

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	var seq int
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			seq++
			c.Render(-1, sse.Event{Id: strconv.Itoa(seq), Event: "method", Data: ev})
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})

	log.Info().Str("remote_addr", c.ClientIP()).Msg("Event stream subscriber disconnected")
}
