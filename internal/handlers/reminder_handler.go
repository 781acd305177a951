package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/models"
	"nextsteps-go/internal/service"
)

type ReminderHandler struct {
	service *service.ReminderService
	logger  *logging.ContextLogger
	tracer  trace.Tracer
}

// NewReminderHandler registers the reminder_email binding tag, so the handler
// is usable without any other setup.
func NewReminderHandler(service *service.ReminderService, logger *logging.ContextLogger) (*ReminderHandler, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	return &ReminderHandler{
		service: service,
		logger:  logger,
		tracer:  otel.Tracer("reminder-handler"),
	}, nil
}

// Preflight answers OPTIONS with an empty 200 before any validation.
func (h *ReminderHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *ReminderHandler) Upsert(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "reminder.handler.upsert",
		trace.WithAttributes(attribute.String("http.route", c.FullPath())))
	defer span.End()

	var req models.ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		msg := bindErrorMessage(err, &req)
		h.logger.WarnWithTracing(ctx, "Invalid reminder payload", logrus.Fields{
			"endpoint": c.FullPath(),
			"error":    err.Error(),
		})
		span.SetAttributes(attribute.String("error.kind", string(service.KindValidation)))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
		return
	}

	h.logger.InfoWithTracing(ctx, "Received reminder request", logrus.Fields{
		"email":         req.Email,
		"reminder_time": req.ReminderTime,
		"endpoint":      c.FullPath(),
	})

	result, err := h.service.Upsert(ctx, &req)
	if err != nil {
		var uerr *service.UpsertError
		if !errors.As(err, &uerr) {
			h.logger.ErrorWithTracing(ctx, "Unexpected reminder failure", err, nil)
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error", Message: err.Error()})
			return
		}

		h.logger.ErrorWithTracing(ctx, "Failed to upsert subscriber", err, logrus.Fields{
			"email":  req.Email,
			"kind":   string(uerr.Kind),
			"status": uerr.StatusCode,
		})
		span.RecordError(err)
		c.JSON(uerr.StatusCode, uerr.Response())
		return
	}

	span.SetAttributes(
		attribute.Bool("subscriber.updated", result.Updated),
		attribute.Bool("success", true),
	)

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: result.Message,
		Data:    result.Data,
	})
}

// MethodNotAllowed is installed as the router's NoMethod handler.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method Not Allowed"})
}
