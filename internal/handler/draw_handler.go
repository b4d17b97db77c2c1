package handler

import (
	"blindbox-draw/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

const headerIdempotencyKey = "Idempotency-Key"

type DrawHandler struct {
	service service.DrawService
}

func NewDrawHandler(service service.DrawService) *DrawHandler {
	return &DrawHandler{service: service}
}

// RegisterRoutes 庫存與購買都需要登入
func (h *DrawHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1", auth)
	{
		router.GET("series/:id/stocks", h.ListStockBoxes)
		router.POST("stocks/:id/purchase", h.Purchase)
	}
}

func (h *DrawHandler) ListStockBoxes(c *gin.Context) {
	seriesID, ok := bindID(c)
	if !ok {
		return
	}
	boxes, err := h.service.ListStockBoxes(c, seriesID)
	if err != nil {
		handleError(c, err, "ListStockBoxes")
		return
	}
	respondOK(c, boxes)
}

// Purchase 不接受 body 也不接受格位參數，抽到哪一格由後端決定
func (h *DrawHandler) Purchase(c *gin.Context) {
	stockID, ok := bindID(c)
	if !ok {
		return
	}
	key := c.GetHeader(headerIdempotencyKey)
	if key == "" {
		respondFail(c, http.StatusBadRequest, http.StatusBadRequest, "Missing Idempotency-Key")
		return
	}

	sale, err := h.service.Purchase(c, stockID, key)
	if err != nil {
		handleError(c, err, "Purchase")
		return
	}
	respondOK(c, gin.H{
		"styleId":   sale.StyleID,
		"drawId":    sale.ID,
		"slotIndex": sale.SlotIndex,
	})
}
