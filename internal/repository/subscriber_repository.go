package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/models"
)

const (
	OperationCreate = "upstream.create"
	OperationUpdate = "upstream.update"
)

// SubscriberRepository talks to the external subscriber list. A non-nil error
// means the call never produced a response; upstream rejections come back as
// an UpstreamResponse with a non-2xx status.
type SubscriberRepository interface {
	Create(ctx context.Context, payload *models.CreateSubscriberPayload) (*models.UpstreamResponse, error)
	Update(ctx context.Context, email string, payload *models.UpdateSubscriberPayload) (*models.UpstreamResponse, error)
}

type memorySubscriber struct {
	ID        uuid.UUID               `json:"id"`
	Email     string                  `json:"email"`
	Status    string                  `json:"status"`
	Fields    models.SubscriberFields `json:"fields"`
	Groups    []string                `json:"groups"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// InMemorySubscriberRepository mimics the MailerLite subscriber endpoints so the
// service can run without credentials against a real list.
type InMemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[string]*memorySubscriber
	tracer      trace.Tracer
}

func NewInMemorySubscriberRepository() *InMemorySubscriberRepository {
	return &InMemorySubscriberRepository{
		subscribers: make(map[string]*memorySubscriber),
		tracer:      otel.Tracer("memory.repository"),
	}
}

func (r *InMemorySubscriberRepository) Create(ctx context.Context, payload *models.CreateSubscriberPayload) (*models.UpstreamResponse, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", payload.Email),
			attribute.String("operation", OperationCreate),
			attribute.String("repository.backend", "memory"),
		))
	defer span.End()

	key := emailKey(payload.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subscribers[key]; exists {
		span.SetAttributes(attribute.Int("http.status_code", http.StatusUnprocessableEntity))
		return jsonResponse(http.StatusUnprocessableEntity, map[string]interface{}{
			"message": "The email has already been taken.",
			"errors": map[string][]string{
				"email": {"The email has already been taken."},
			},
		})
	}

	now := time.Now().UTC()
	subscriber := &memorySubscriber{
		ID:        uuid.New(),
		Email:     strings.TrimSpace(payload.Email),
		Status:    payload.Status,
		Fields:    payload.Fields,
		Groups:    append([]string(nil), payload.Groups...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.subscribers[key] = subscriber

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Int("http.status_code", http.StatusCreated),
	)
	return jsonResponse(http.StatusCreated, map[string]interface{}{"data": subscriber})
}

func (r *InMemorySubscriberRepository) Update(ctx context.Context, email string, payload *models.UpdateSubscriberPayload) (*models.UpstreamResponse, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.update",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", OperationUpdate),
			attribute.String("repository.backend", "memory"),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	subscriber, exists := r.subscribers[emailKey(email)]
	if !exists {
		span.SetAttributes(attribute.Int("http.status_code", http.StatusNotFound))
		return jsonResponse(http.StatusNotFound, map[string]string{"message": "Resource not found."})
	}

	subscriber.Fields = payload.Fields
	subscriber.Groups = mergeGroups(subscriber.Groups, payload.Groups)
	subscriber.UpdatedAt = time.Now().UTC()

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Int("http.status_code", http.StatusOK),
	)
	return jsonResponse(http.StatusOK, map[string]interface{}{"data": subscriber})
}

// Fields returns the stored custom fields for an email, for inspection in tests
// and sandbox runs.
func (r *InMemorySubscriberRepository) Fields(email string) (models.SubscriberFields, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscriber, exists := r.subscribers[emailKey(email)]
	if !exists {
		return models.SubscriberFields{}, false
	}
	return subscriber.Fields, true
}

func (r *InMemorySubscriberRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mergeGroups(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string(nil), existing...)
	for _, g := range existing {
		seen[g] = true
	}
	for _, g := range added {
		if !seen[g] {
			seen[g] = true
			merged = append(merged, g)
		}
	}
	return merged
}

func jsonResponse(status int, body interface{}) (*models.UpstreamResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &models.UpstreamResponse{StatusCode: status, Body: raw}, nil
}
