package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/models"
	"nextsteps-go/internal/repository"
)

const (
	msgAdded   = "Subscriber added successfully"
	msgUpdated = "Subscriber updated successfully"
)

type Settings struct {
	APIKey  string
	GroupID string
}

// ReminderService creates or refreshes a subscriber in the external list.
type ReminderService struct {
	repo     repository.SubscriberRepository
	settings Settings
	clock    clock.Clock
	logger   *logging.ContextLogger
	tracer   trace.Tracer
}

func NewReminderService(repo repository.SubscriberRepository, settings Settings, clk clock.Clock, logger *logging.ContextLogger) *ReminderService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ReminderService{
		repo:     repo,
		settings: settings,
		clock:    clk,
		logger:   logger,
		tracer:   otel.Tracer("reminder-service"),
	}
}

// Upsert creates the subscriber and falls back to exactly one update when the
// email already exists. Failures are returned as *UpsertError.
func (s *ReminderService) Upsert(ctx context.Context, req *models.ReminderRequest) (*models.UpsertResult, error) {
	ctx, span := s.tracer.Start(ctx, "reminder.service.upsert",
		trace.WithAttributes(
			attribute.String("subscriber.email", strings.TrimSpace(req.Email)),
			attribute.String("reminder.time", req.ReminderTime),
		))
	defer span.End()

	result, uerr := s.upsert(ctx, req)
	if uerr != nil {
		span.SetAttributes(
			attribute.String("error.kind", string(uerr.Kind)),
			attribute.Int("http.status_code", uerr.StatusCode),
		)
		span.SetStatus(codes.Error, uerr.Text)
		return nil, uerr
	}

	span.SetAttributes(
		attribute.Bool("subscriber.updated", result.Updated),
		attribute.Bool("success", true),
	)
	return result, nil
}

func (s *ReminderService) upsert(ctx context.Context, req *models.ReminderRequest) (*models.UpsertResult, *UpsertError) {
	if err := req.Validate(); err != nil {
		s.logger.WarnWithTracing(ctx, "Rejected reminder request", logrus.Fields{
			"reason": err.Error(),
		})
		return nil, validationError(err)
	}

	if s.settings.APIKey == "" {
		s.logger.ErrorWithTracing(ctx, "MailerLite API key is not configured", nil, nil)
		return nil, misconfiguredError()
	}

	resolved := req.Resolve(s.clock.Now())
	payload := models.NewCreateSubscriberPayload(req, resolved, s.settings.GroupID)

	s.logger.InfoWithTracing(ctx, "Creating subscriber", logrus.Fields{
		"email":         payload.Email,
		"reminder_time": req.ReminderTime,
		"reminder_date": resolved.ReminderDate,
		"group_id":      s.settings.GroupID,
	})

	created, err := s.repo.Create(ctx, payload)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Subscriber create request failed", err, logrus.Fields{
			"email": payload.Email,
		})
		return nil, transportError(err)
	}

	s.logger.InfoWithTracing(ctx, "Subscriber create responded", logrus.Fields{
		"status": created.StatusCode,
		"body":   string(created.Body),
	})

	createdBody, ok := created.JSON()
	if !ok {
		s.logger.ErrorWithTracing(ctx, "Failed to parse subscriber create response", nil, logrus.Fields{
			"status": created.StatusCode,
			"body":   string(created.Body),
		})
		return nil, malformedResponseError(created)
	}

	if created.OK() {
		return &models.UpsertResult{Message: msgAdded, Data: createdBody}, nil
	}

	if !isConflict(created.StatusCode) {
		s.logger.ErrorWithTracing(ctx, "Subscriber create rejected", nil, logrus.Fields{
			"status": created.StatusCode,
			"body":   string(created.Body),
		})
		return nil, upstreamRejectedError(created, createdBody)
	}

	return s.update(ctx, payload, created, createdBody)
}

func (s *ReminderService) update(ctx context.Context, payload *models.CreateSubscriberPayload, created *models.UpstreamResponse, createdBody json.RawMessage) (*models.UpsertResult, *UpsertError) {
	s.logger.InfoWithTracing(ctx, "Subscriber exists, updating instead", logrus.Fields{
		"email":         payload.Email,
		"create_status": created.StatusCode,
	})

	updated, err := s.repo.Update(ctx, payload.Email, payload.UpdatePayload())
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Subscriber update request failed", err, logrus.Fields{
			"email": payload.Email,
		})
		return nil, transportError(err)
	}

	if !updated.OK() {
		s.logger.ErrorWithTracing(ctx, "Subscriber update rejected", nil, logrus.Fields{
			"status": updated.StatusCode,
			"body":   string(updated.Body),
		})
		uerr := upstreamRejectedError(created, createdBody)
		uerr.Message = fmt.Sprintf("update failed with status %d: %s", updated.StatusCode, strings.TrimSpace(string(updated.Body)))
		return nil, uerr
	}

	updatedBody, ok := updated.JSON()
	if !ok {
		s.logger.ErrorWithTracing(ctx, "Failed to parse subscriber update response", nil, logrus.Fields{
			"status": updated.StatusCode,
			"body":   string(updated.Body),
		})
		return nil, malformedResponseError(updated)
	}

	s.logger.InfoWithTracing(ctx, "Subscriber updated", logrus.Fields{
		"email": payload.Email,
	})
	return &models.UpsertResult{Updated: true, Message: msgUpdated, Data: updatedBody}, nil
}

func isConflict(status int) bool {
	return status == http.StatusConflict || status == http.StatusUnprocessableEntity
}
