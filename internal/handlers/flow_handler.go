package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/flow"
	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/models"
	"nextsteps-go/internal/session"
)

type createFlowRequest struct {
	SkipRegistration bool `json:"skipRegistration"`
}

// flowFormRequest carries no binding tags: a form may be incomplete until it
// is submitted.
type flowFormRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	BusinessName string `json:"businessName"`
	Address      string `json:"address"`
	ReminderTime string `json:"reminderTime"`
}

func (r flowFormRequest) toReminderRequest() models.ReminderRequest {
	return models.ReminderRequest{
		Email:        r.Email,
		Name:         r.Name,
		BusinessName: r.BusinessName,
		Address:      r.Address,
		ReminderTime: r.ReminderTime,
	}
}

type fireEventRequest struct {
	Event string `json:"event"`
}

type flowResponse struct {
	ID string `json:"id"`
	flow.Snapshot
	Error string `json:"error,omitempty"`
}

type embedMessageResponse struct {
	Detected bool         `json:"detected"`
	Flow     flowResponse `json:"flow"`
}

// FlowHandler hosts flow controllers server side, one per session id.
type FlowHandler struct {
	sessions      session.Store
	submitter     flow.Submitter
	clock         clock.Clock
	continueDelay time.Duration
	logger        *logging.ContextLogger
	tracer        trace.Tracer
}

func NewFlowHandler(sessions session.Store, submitter flow.Submitter, clk clock.Clock, continueDelay time.Duration, logger *logging.ContextLogger) *FlowHandler {
	return &FlowHandler{
		sessions:      sessions,
		submitter:     submitter,
		clock:         clk,
		continueDelay: continueDelay,
		logger:        logger,
		tracer:        otel.Tracer("flow-handler"),
	}
}

func (h *FlowHandler) Create(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "flow.handler.create")
	defer span.End()

	var req createFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid flow request"})
		return
	}

	opts := []flow.Option{flow.WithClock(h.clock), flow.WithContinueDelay(h.continueDelay)}
	if req.SkipRegistration {
		opts = append(opts, flow.WithInitialView(flow.ViewDecision))
	}
	controller := flow.NewController(h.submitter, opts...)

	id, err := h.sessions.Put(ctx, controller)
	if err != nil {
		h.logger.ErrorWithTracing(ctx, "Failed to store flow session", err, nil)
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	h.logger.InfoWithTracing(ctx, "Started flow", logrus.Fields{
		"flow_id": id.String(),
		"view":    string(controller.View()),
	})
	span.SetAttributes(attribute.String("flow.id", id.String()))

	c.JSON(http.StatusCreated, flowResponse{ID: id.String(), Snapshot: controller.Snapshot()})
}

func (h *FlowHandler) Get(c *gin.Context) {
	id, controller, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, flowResponse{ID: id.String(), Snapshot: controller.Snapshot()})
}

func (h *FlowHandler) FireEvent(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "flow.handler.event")
	defer span.End()

	id, controller, ok := h.lookup(c)
	if !ok {
		return
	}

	var req fireEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid event request"})
		return
	}

	event, err := flow.ParseEvent(req.Event)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	span.SetAttributes(attribute.String("flow.event", string(event)))

	snap, err := controller.Fire(event)
	if err != nil {
		h.logger.WarnWithTracing(ctx, "Rejected flow event", logrus.Fields{
			"flow_id": id.String(),
			"event":   string(event),
			"view":    string(snap.View),
			"error":   err.Error(),
		})
		c.JSON(http.StatusConflict, flowResponse{ID: id.String(), Snapshot: snap, Error: err.Error()})
		return
	}

	h.logger.InfoWithTracing(ctx, "Flow advanced", logrus.Fields{
		"flow_id": id.String(),
		"event":   string(event),
		"view":    string(snap.View),
	})
	c.JSON(http.StatusOK, flowResponse{ID: id.String(), Snapshot: snap})
}

// Message receives a raw message relayed from an embedded registration form.
func (h *FlowHandler) Message(c *gin.Context) {
	id, controller, ok := h.lookup(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid message"})
		return
	}

	detected := controller.HandleEmbedMessage(raw)
	c.JSON(http.StatusOK, embedMessageResponse{
		Detected: detected,
		Flow:     flowResponse{ID: id.String(), Snapshot: controller.Snapshot()},
	})
}

func (h *FlowHandler) UpdateForm(c *gin.Context) {
	id, controller, ok := h.lookup(c)
	if !ok {
		return
	}

	var form flowFormRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid form"})
		return
	}

	snap, err := controller.SetForm(form.toReminderRequest())
	if err != nil {
		c.JSON(http.StatusConflict, flowResponse{ID: id.String(), Snapshot: snap, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, flowResponse{ID: id.String(), Snapshot: snap})
}

func (h *FlowHandler) Submit(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "flow.handler.submit")
	defer span.End()

	id, controller, ok := h.lookup(c)
	if !ok {
		return
	}

	snap, err := controller.Submit(ctx)
	if err != nil {
		status := submitErrorStatus(err)
		h.logger.WarnWithTracing(ctx, "Reminder submission did not complete", logrus.Fields{
			"flow_id": id.String(),
			"status":  status,
			"error":   err.Error(),
		})
		span.RecordError(err)
		c.JSON(status, flowResponse{ID: id.String(), Snapshot: snap, Error: err.Error()})
		return
	}

	h.logger.InfoWithTracing(ctx, "Reminder submitted", logrus.Fields{
		"flow_id": id.String(),
	})
	span.SetAttributes(attribute.Bool("success", true))
	c.JSON(http.StatusOK, flowResponse{ID: id.String(), Snapshot: snap})
}

func (h *FlowHandler) lookup(c *gin.Context) (uuid.UUID, *flow.Controller, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Flow not found"})
		return uuid.Nil, nil, false
	}

	controller, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Flow not found"})
		return uuid.Nil, nil, false
	}
	return id, controller, true
}

func submitErrorStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrSubmissionInFlight), errors.Is(err, flow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, flow.ErrSubmissionFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
