package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/models"
)

// MailerLiteSubscriberRepository calls the MailerLite connect API directly.
type MailerLiteSubscriberRepository struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewMailerLiteSubscriberRepository(baseURL, apiKey string, timeout time.Duration) *MailerLiteSubscriberRepository {
	return &MailerLiteSubscriberRepository{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("mailerlite.repository"),
	}
}

func (r *MailerLiteSubscriberRepository) Create(ctx context.Context, payload *models.CreateSubscriberPayload) (*models.UpstreamResponse, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", payload.Email),
			attribute.String("operation", OperationCreate),
			attribute.String("repository.backend", "mailerlite"),
		))
	defer span.End()

	resp, err := r.do(ctx, http.MethodPost, r.baseURL+"/subscribers", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func (r *MailerLiteSubscriberRepository) Update(ctx context.Context, email string, payload *models.UpdateSubscriberPayload) (*models.UpstreamResponse, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.update",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", OperationUpdate),
			attribute.String("repository.backend", "mailerlite"),
		))
	defer span.End()

	endpoint := fmt.Sprintf("%s/subscribers/%s", r.baseURL, url.PathEscape(email))
	resp, err := r.do(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func (r *MailerLiteSubscriberRepository) do(ctx context.Context, method, endpoint string, payload interface{}) (*models.UpstreamResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscriber payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	r.setHeaders(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrRequestFailed, err)
	}

	return &models.UpstreamResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}

func (r *MailerLiteSubscriberRepository) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
}
