package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/models"
	"nextsteps-go/internal/payment"
)

type CatalogHandler struct {
	checkouts *payment.Checkouts
	currency  string
	logger    *logging.ContextLogger
}

func NewCatalogHandler(checkouts *payment.Checkouts, currency string, logger *logging.ContextLogger) *CatalogHandler {
	return &CatalogHandler{checkouts: checkouts, currency: currency, logger: logger}
}

func (h *CatalogHandler) ReminderOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"options": models.ReminderOptions(),
		"default": models.DefaultReminderOption,
	})
}

func (h *CatalogHandler) Services(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": payment.Services(),
		"currency": h.currency,
	})
}

func (h *CatalogHandler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()

	var req payment.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Email is required"})
		return
	}

	checkout, err := h.checkouts.New(req)
	if err != nil {
		status, msg := checkoutError(err)
		h.logger.WarnWithTracing(ctx, "Checkout rejected", logrus.Fields{
			"service": req.Service,
			"error":   err.Error(),
		})
		c.JSON(status, models.ErrorResponse{Error: msg})
		return
	}

	h.logger.InfoWithTracing(ctx, "Checkout prepared", logrus.Fields{
		"service":   req.Service,
		"reference": checkout.Reference,
		"amount":    checkout.Amount,
	})
	c.JSON(http.StatusOK, checkout)
}

func checkoutError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrEmailRequired), errors.Is(err, models.ErrEmailInvalid):
		return http.StatusBadRequest, models.EmailErrorMessage(err)
	case errors.Is(err, payment.ErrInvalidCustomPrice):
		return http.StatusBadRequest, "Please enter a valid amount for custom services"
	case errors.Is(err, payment.ErrUnknownService):
		return http.StatusBadRequest, "Unknown service"
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Payment is not configured"
	}
	return http.StatusInternalServerError, "Internal server error"
}
