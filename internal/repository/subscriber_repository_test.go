package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextsteps-go/internal/models"
)

func samplePayload(email string) *models.CreateSubscriberPayload {
	return &models.CreateSubscriberPayload{
		Email: email,
		Fields: models.SubscriberFields{
			Name:          "Jane",
			BusinessName:  "Acme",
			ReminderDate:  "2026-02-02",
			ReminderTime:  "3days",
			PaymentStatus: models.PaymentStatusNotPaid,
		},
		Groups: []string{"g1"},
		Status: models.SubscriberStatusActive,
	}
}

func TestInMemoryRepositoryCreateThenConflict(t *testing.T) {
	repo := NewInMemorySubscriberRepository()
	ctx := context.Background()

	resp, err := repo.Create(ctx, samplePayload("a@b.co"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	_, ok := resp.JSON()
	assert.True(t, ok)

	resp, err = repo.Create(ctx, samplePayload("A@B.co"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 1, repo.Count())
}

func TestInMemoryRepositoryUpdate(t *testing.T) {
	repo := NewInMemorySubscriberRepository()
	ctx := context.Background()

	resp, err := repo.Update(ctx, "missing@b.co", samplePayload("missing@b.co").UpdatePayload())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = repo.Create(ctx, samplePayload("a@b.co"))
	require.NoError(t, err)

	update := samplePayload("a@b.co").UpdatePayload()
	update.Fields.ReminderDate = "2026-03-01"
	resp, err = repo.Update(ctx, "a@b.co", update)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	fields, ok := repo.Fields("a@b.co")
	require.True(t, ok)
	assert.Equal(t, "2026-03-01", fields.ReminderDate)
}

func TestMailerLiteRepositoryCreate(t *testing.T) {
	var captured models.CreateSubscriberPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscribers", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer server.Close()

	repo := NewMailerLiteSubscriberRepository(server.URL+"/", "secret", time.Second)
	resp, err := repo.Create(context.Background(), samplePayload("a@b.co"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"id":"1"}}`, string(resp.Body))
	assert.Equal(t, "a@b.co", captured.Email)
	assert.Equal(t, []string{"g1"}, captured.Groups)
	assert.Equal(t, "active", captured.Status)
}

func TestMailerLiteRepositoryUpdateEscapesEmail(t *testing.T) {
	var path string
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		method = r.Method
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	repo := NewMailerLiteSubscriberRepository(server.URL, "secret", time.Second)
	resp, err := repo.Update(context.Background(), "jane+test@b.co", samplePayload("jane+test@b.co").UpdatePayload())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/subscribers/jane+test@b.co", path)
}

func TestMailerLiteRepositoryReturnsNon2xxAsResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"taken"}`))
	}))
	defer server.Close()

	repo := NewMailerLiteSubscriberRepository(server.URL, "secret", time.Second)
	resp, err := repo.Create(context.Background(), samplePayload("a@b.co"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMailerLiteRepositoryTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	repo := NewMailerLiteSubscriberRepository(url, "secret", time.Second)
	_, err := repo.Create(context.Background(), samplePayload("a@b.co"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

type fakeBinding struct {
	requests []*dapr.InvokeBindingRequest
	event    *dapr.BindingEvent
	err      error
}

func (f *fakeBinding) InvokeBinding(ctx context.Context, in *dapr.InvokeBindingRequest) (*dapr.BindingEvent, error) {
	f.requests = append(f.requests, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func TestDaprRepositoryCreate(t *testing.T) {
	binding := &fakeBinding{event: &dapr.BindingEvent{
		Data:     []byte(`{"data":{"id":"1"}}`),
		Metadata: map[string]string{"statusCode": "201"},
	}}
	repo := NewDaprSubscriberRepository(binding, "mailerlite", "secret")

	resp, err := repo.Create(context.Background(), samplePayload("a@b.co"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, binding.requests, 1)
	req := binding.requests[0]
	assert.Equal(t, "mailerlite", req.Name)
	assert.Equal(t, "post", req.Operation)
	assert.Equal(t, "/subscribers", req.Metadata["path"])
	assert.Equal(t, "Bearer secret", req.Metadata["Authorization"])
	assert.Equal(t, "false", req.Metadata["errorIfNot2XX"])

	var sent models.CreateSubscriberPayload
	require.NoError(t, json.Unmarshal(req.Data, &sent))
	assert.Equal(t, "a@b.co", sent.Email)
}

func TestDaprRepositoryUpdate(t *testing.T) {
	binding := &fakeBinding{event: &dapr.BindingEvent{
		Data:     []byte(`{"data":{}}`),
		Metadata: map[string]string{"statusCode": "200"},
	}}
	repo := NewDaprSubscriberRepository(binding, "mailerlite", "secret")

	resp, err := repo.Update(context.Background(), "a@b.co", samplePayload("a@b.co").UpdatePayload())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "put", binding.requests[0].Operation)
	assert.Equal(t, "/subscribers/a@b.co", binding.requests[0].Metadata["path"])
}

func TestDaprRepositoryErrors(t *testing.T) {
	t.Run("binding failure", func(t *testing.T) {
		repo := NewDaprSubscriberRepository(&fakeBinding{err: errors.New("sidecar down")}, "mailerlite", "secret")
		_, err := repo.Create(context.Background(), samplePayload("a@b.co"))
		assert.ErrorIs(t, err, ErrBindingFailure)
	})

	t.Run("bad status metadata", func(t *testing.T) {
		binding := &fakeBinding{event: &dapr.BindingEvent{Metadata: map[string]string{"statusCode": "abc"}}}
		repo := NewDaprSubscriberRepository(binding, "mailerlite", "secret")
		_, err := repo.Create(context.Background(), samplePayload("a@b.co"))
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("missing status defaults to 200", func(t *testing.T) {
		binding := &fakeBinding{event: &dapr.BindingEvent{Data: []byte(`{}`)}}
		repo := NewDaprSubscriberRepository(binding, "mailerlite", "secret")
		resp, err := repo.Create(context.Background(), samplePayload("a@b.co"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
