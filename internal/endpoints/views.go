package endpoints

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// ViewProvider returns the view of a banner by ad id. Unknown ids yield an empty view.
type ViewProvider interface {
	View(adID int) *openwrap.AdView
}

// ViewResponse is the snapshot returned for a banner view
type ViewResponse struct {
	ViewType string             `json:"viewType"`
	AdID     int                `json:"adId"`
	Empty    bool               `json:"empty"`
	Creative *openwrap.Creative `json:"creative,omitempty"`
}

// ViewHandler serves banner view snapshots
type ViewHandler struct {
	views ViewProvider
}

// NewViewHandler creates a view handler
func NewViewHandler(views ViewProvider) *ViewHandler {
	return &ViewHandler{views: views}
}

// Get handles GET /v1/views/:adId
func (h *ViewHandler) Get(c *gin.Context) {
	adID, err := strconv.Atoi(c.Param("adId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "adId must be an integer"})
		return
	}

	creative := h.views.View(adID).Creative()
	c.JSON(http.StatusOK, ViewResponse{
		ViewType: config.BannerViewType,
		AdID:     adID,
		Empty:    creative == nil,
		Creative: creative,
	})
}
