package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	dapr "github.com/dapr/go-sdk/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/models"
)

// BindingInvoker is the part of dapr.Client the repository needs.
type BindingInvoker interface {
	InvokeBinding(ctx context.Context, in *dapr.InvokeBindingRequest) (*dapr.BindingEvent, error)
}

// DaprSubscriberRepository sends the subscriber calls through a Dapr HTTP
// output binding whose url points at the MailerLite API root.
type DaprSubscriberRepository struct {
	client      BindingInvoker
	bindingName string
	apiKey      string
	tracer      trace.Tracer
}

func NewDaprSubscriberRepository(client BindingInvoker, bindingName, apiKey string) *DaprSubscriberRepository {
	return &DaprSubscriberRepository{
		client:      client,
		bindingName: bindingName,
		apiKey:      apiKey,
		tracer:      otel.Tracer("dapr.repository"),
	}
}

func (r *DaprSubscriberRepository) Create(ctx context.Context, payload *models.CreateSubscriberPayload) (*models.UpstreamResponse, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", payload.Email),
			attribute.String("operation", OperationCreate),
			attribute.String("repository.backend", "dapr"),
			attribute.String("dapr.binding", r.bindingName),
		))
	defer span.End()

	resp, err := r.invoke(ctx, "post", "/subscribers", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create binding failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func (r *DaprSubscriberRepository) Update(ctx context.Context, email string, payload *models.UpdateSubscriberPayload) (*models.UpstreamResponse, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.update",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", OperationUpdate),
			attribute.String("repository.backend", "dapr"),
			attribute.String("dapr.binding", r.bindingName),
		))
	defer span.End()

	resp, err := r.invoke(ctx, "put", "/subscribers/"+url.PathEscape(email), payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update binding failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func (r *DaprSubscriberRepository) invoke(ctx context.Context, operation, path string, payload interface{}) (*models.UpstreamResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscriber payload: %w", err)
	}

	out, err := r.client.InvokeBinding(ctx, &dapr.InvokeBindingRequest{
		Name:      r.bindingName,
		Operation: operation,
		Data:      data,
		Metadata: map[string]string{
			"path":          path,
			"Authorization": "Bearer " + r.apiKey,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
			// Non-2xx replies must reach the service so conflicts can fall back to an update.
			"errorIfNot2XX": "false",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrBindingFailure, operation, path, err)
	}

	status := http.StatusOK
	if raw, ok := out.Metadata["statusCode"]; ok {
		status, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
		}
	}

	return &models.UpstreamResponse{StatusCode: status, Body: out.Data}, nil
}
