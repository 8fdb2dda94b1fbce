package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhealth/ivr-platform/internal/callflow"
	"github.com/voxhealth/ivr-platform/internal/identity"
	"github.com/voxhealth/ivr-platform/internal/session"
	"github.com/voxhealth/ivr-platform/internal/transcript"
)

func scriptedFactory(t *testing.T) OrchestratorFactory {
	t.Helper()

	store := session.NewMemoryStore(0, nil)
	t.Cleanup(store.Close)
	repo := identity.NewMemoryRepository(identity.CustomerRecord{
		ID: 1, FirstName: "Maria", LastName: "Santos",
		Phone: "555-123-4567", Last4SSN: "9876", DOB: "11/10/1986",
		Plan: "Gold", Status: "active",
	})

	return func(speech callflow.SpeechClient) (*callflow.Orchestrator, error) {
		return callflow.NewOrchestrator(callflow.OrchestratorDeps{
			Speech:    speech,
			Validator: identity.NewValidator(repo),
			Sessions:  store,
			Recorder:  transcript.NewMemoryRecorder(),
		})
	}
}

func TestLive(t *testing.T) {
	h := NewCallsHandler(scriptedFactory(t), nil)

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/calls/start", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Voice agent is live."}`, rec.Body.String())
}

func TestStartRunsScriptedCall(t *testing.T) {
	h := NewCallsHandler(scriptedFactory(t), nil)

	body := `{"replies": ["555-123-4567", "9876", "eleven ten nineteen eighty six",
		"no thanks", "check my benefits"]}`
	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/calls/start", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StartCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Call finished", resp.Status)
	assert.Equal(t, callflow.StateComplete, resp.Result.FinalState)
	assert.True(t, resp.Result.Authenticated)
	assert.False(t, resp.Result.Connected)
	assert.NotEmpty(t, resp.Spoken)
}

func TestStartEmptyBodyStillRuns(t *testing.T) {
	h := NewCallsHandler(scriptedFactory(t), nil)

	// No replies scripted: authentication fails after three prompts.
	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/calls/start", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StartCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, callflow.StateRejected, resp.Result.FinalState)
	assert.False(t, resp.Result.Authenticated)
}

func TestStartMalformedBody(t *testing.T) {
	h := NewCallsHandler(scriptedFactory(t), nil)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/calls/start", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartFactoryFailure(t *testing.T) {
	h := NewCallsHandler(func(callflow.SpeechClient) (*callflow.Orchestrator, error) {
		return nil, errors.New("boom")
	}, nil)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/calls/start", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
