package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/anochat/anochat-server/internal/core"
	"github.com/anochat/anochat-server/internal/store"
)

// LoungeHandlers serves the read-only lounge surface: public room
// listings and the aggregate stats document.
type LoungeHandlers struct {
	coord      *core.Coordinator
	statsStore store.StatsStore
	log        *zerolog.Logger
}

// NewLoungeHandlers creates a new lounge handlers instance.
func NewLoungeHandlers(coord *core.Coordinator, statsStore store.StatsStore, logger *zerolog.Logger) *LoungeHandlers {
	return &LoungeHandlers{
		coord:      coord,
		statsStore: statsStore,
		log:        logger,
	}
}

// SuccessResponse is the wrapper every lounge endpoint responds with.
type SuccessResponse struct {
	Success    bool `json:"success"`
	Data       any  `json:"data"`
	StatusCode int  `json:"statusCode"`
}

// ErrorResponse is the wrapper for failed lounge requests.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// GetRooms lists public rooms with member counts, membership stripped.
// GET /api/v1/loungeInfo/getRooms
func (h *LoungeHandlers) GetRooms(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success:    true,
		Data:       h.coord.PublicRooms(),
		StatusCode: http.StatusOK,
	})
}

// GetSiteDetails returns the persisted aggregate stats document.
// GET /api/v1/loungeInfo/getSiteDetails
func (h *LoungeHandlers) GetSiteDetails(c *gin.Context) {
	snap, err := h.statsStore.Load(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load stats document")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success:    false,
			Error:      "internal server error",
			StatusCode: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success:    true,
		Data:       snap,
		StatusCode: http.StatusOK,
	})
}
