package handler

import (
	"blindbox-draw/internal/service"

	"github.com/gin-gonic/gin"
)

type SeriesHandler struct {
	service service.DrawService
}

func NewSeriesHandler(service service.DrawService) *SeriesHandler {
	return &SeriesHandler{service: service}
}

func (h *SeriesHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("series/:id", h.GetSeries)
		router.GET("series/:id/price", h.GetPrice)
	}
}

func (h *SeriesHandler) GetSeries(c *gin.Context) {
	seriesID, ok := bindID(c)
	if !ok {
		return
	}
	detail, err := h.service.GetSeries(c, seriesID)
	if err != nil {
		handleError(c, err, "GetSeries")
		return
	}
	respondOK(c, detail)
}

func (h *SeriesHandler) GetPrice(c *gin.Context) {
	seriesID, ok := bindID(c)
	if !ok {
		return
	}
	quote, err := h.service.GetPriceQuote(c, seriesID)
	if err != nil {
		handleError(c, err, "GetPrice")
		return
	}
	respondOK(c, quote)
}
