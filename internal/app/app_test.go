package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/config"
	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/repository"
	"nextsteps-go/internal/telemetry"
)

// fakeMailerLite stands in for the subscriber API. Creates for an email it has
// already seen answer 422, like the real list does.
type fakeMailerLite struct {
	mu      sync.Mutex
	known   map[string]bool
	creates int
	updates int
	failPut bool
}

func (f *fakeMailerLite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodPost:
		f.creates++
		var body struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.known[body.Email] {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"The email has already been taken."}`))
			return
		}
		f.known[body.Email] = true
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"email":"` + body.Email + `"}}`))
	case http.MethodPut:
		f.updates++
		if f.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"Server Error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"updated":true}}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeMailerLite) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.updates
}

type TestApp struct {
	server      *httptest.Server
	upstream    *httptest.Server
	mailerlite  *fakeMailerLite
	recorder    *telemetry.TestSpanRecorder
	tp          *trace.TracerProvider
	application *Application
}

func testSettings(apiKey string) *config.Config {
	return &config.Config{
		ServerPort:        "0",
		GinMode:           gin.TestMode,
		ServiceName:       "test-nextsteps-api",
		ServiceVersion:    "1.0.0",
		MailerLiteAPIKey:  apiKey,
		MailerLiteGroupID: config.DefaultGroupID,
		MailerLiteTimeout: 5 * time.Second,
		SubscriberBackend: config.BackendMailerLite,
		PaymentPublicKey:  "pk_test",
		PaymentCurrency:   "ZAR",
		FlowSessionTTL:    time.Hour,
		FlowContinueDelay: 2 * time.Minute,
	}
}

func SpawnTestApp(t *testing.T, apiKey string) *TestApp {
	recorder := telemetry.NewTestSpanRecorder()
	tp := telemetry.NewTestTracerProvider(recorder)
	otel.SetTracerProvider(tp)

	mailerlite := &fakeMailerLite{known: make(map[string]bool)}
	upstream := httptest.NewServer(mailerlite)

	settings := testSettings(apiKey)
	application, err := Build(&Config{
		Settings:       settings,
		Logger:         logging.NewDiscardLogger(),
		TracerProvider: tp,
		Repository:     repository.NewMailerLiteSubscriberRepository(upstream.URL, apiKey, settings.MailerLiteTimeout),
		Clock:          clock.NewManualClock(time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	server := httptest.NewServer(application.Handler())

	app := &TestApp{
		server:      server,
		upstream:    upstream,
		mailerlite:  mailerlite,
		recorder:    recorder,
		tp:          tp,
		application: application,
	}
	t.Cleanup(app.Close)
	return app
}

func (app *TestApp) Close() {
	app.server.Close()
	app.upstream.Close()
	_ = app.application.Shutdown(context.Background())
	_ = app.tp.Shutdown(context.Background())
}

func (app *TestApp) post(t *testing.T, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(app.server.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestReminderUpsertCreatesThenUpdates(t *testing.T) {
	app := SpawnTestApp(t, "secret")

	resp, body := app.post(t, "/api/v1/reminders", `{"email":"jane@acme.co","name":"Jane","reminderTime":"3days"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Subscriber added successfully", body["message"])

	resp, body = app.post(t, "/.netlify/functions/add-mailerlite-subscriber", `{"email":"jane@acme.co","reminderTime":"1week"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Subscriber updated successfully", body["message"])
	assert.Equal(t, map[string]interface{}{"data": map[string]interface{}{"updated": true}}, body["data"])

	creates, updates := app.mailerlite.counts()
	assert.Equal(t, 2, creates)
	assert.Equal(t, 1, updates)

	assert.Len(t, app.recorder.GetSpansByOperation(repository.OperationCreate), 2)
	assert.Len(t, app.recorder.GetSpansByOperation(repository.OperationUpdate), 1)
}

func TestReminderUpdateFailureStopsAfterOneUpdate(t *testing.T) {
	app := SpawnTestApp(t, "secret")
	app.mailerlite.known["jane@acme.co"] = true
	app.mailerlite.failPut = true

	resp, body := app.post(t, "/api/v1/reminders", `{"email":"jane@acme.co"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Failed to add subscriber to MailerLite", body["error"])
	assert.NotNil(t, body["details"])
	assert.Contains(t, body["message"], "500")

	creates, updates := app.mailerlite.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)
}

func TestReminderWithoutAPIKey(t *testing.T) {
	app := SpawnTestApp(t, "")

	resp, body := app.post(t, "/api/v1/reminders", `{"email":"jane@acme.co"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Server configuration error", body["error"])

	creates, _ := app.mailerlite.counts()
	assert.Equal(t, 0, creates)
}

func TestCORSPreflight(t *testing.T) {
	app := SpawnTestApp(t, "secret")

	req, err := http.NewRequest(http.MethodOptions, app.server.URL+"/.netlify/functions/add-mailerlite-subscriber", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.co.za")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, resp.Header.Get("Access-Control-Allow-Methods"))

	raw, _ := io.ReadAll(resp.Body)
	assert.Empty(t, raw)
}

func TestMethodNotAllowed(t *testing.T) {
	app := SpawnTestApp(t, "secret")

	resp, err := http.Get(app.server.URL + "/api/v1/reminders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Method Not Allowed", body["error"])
}

func TestHostedFlowEndToEnd(t *testing.T) {
	app := SpawnTestApp(t, "secret")

	resp, body := app.post(t, "/api/v1/flows", ``)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	base := "/api/v1/flows/" + id

	_, body = app.post(t, base+"/messages", `"clickup-form-submitted"`)
	assert.Equal(t, true, body["detected"])

	resp, body = app.post(t, base+"/events", `{"event":"remind-later"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reminder-form", body["view"])

	req, err := http.NewRequest(http.MethodPut, app.server.URL+base+"/form", bytes.NewBufferString(`{"email":"owner@acme.co","businessName":"Acme"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	formResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	formResp.Body.Close()
	require.Equal(t, http.StatusOK, formResp.StatusCode)

	resp, body = app.post(t, base+"/reminder", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reminder-success", body["view"])

	creates, updates := app.mailerlite.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, updates)
	assert.NotEmpty(t, app.recorder.GetSpansByOperation("session.read"))
	assert.NotEmpty(t, app.recorder.GetSpansByOperation("flow.submit"))
}

func TestHealth(t *testing.T) {
	app := SpawnTestApp(t, "secret")

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-nextsteps-api", body["service"])
}
