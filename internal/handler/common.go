package handler

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type idURI struct {
	ID string `uri:"id" binding:"required"`
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		respondFail(c, http.StatusBadRequest, http.StatusBadRequest, "Invalid request format")
		return err
	}
	return nil
}

func bindID(c *gin.Context) (model.ID, bool) {
	var uri idURI
	if err := BindUri(c, &uri); err != nil {
		return "", false
	}
	return model.ID(uri.ID), true
}

// respondOK 以 {code, msg, data} 包裝成功回應
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": apperrors.CodeOK,
		"msg":  "ok",
		"data": data,
	})
}

func respondFail(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": code,
		"msg":  msg,
	})
}

func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrSoldOut):
		log.Warn("Sold out")
		respondFail(c, http.StatusConflict, apperrors.CodeSoldOut, "This box is sold out")
	case errors.Is(err, apperrors.ErrStockBoxNotFound):
		log.Warn("Stock box not found")
		respondFail(c, http.StatusNotFound, apperrors.CodeNotFound, "Stock box not found")
	case errors.Is(err, apperrors.ErrSeriesNotFound):
		log.Warn("Series not found")
		respondFail(c, http.StatusNotFound, apperrors.CodeNotFound, "Series not found")
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		respondFail(c, http.StatusBadRequest, http.StatusBadRequest, "Invalid request format")
	default:
		log.Error("Unexpected error")
		respondFail(c, http.StatusInternalServerError, http.StatusInternalServerError, "Internal server error")
	}
}
