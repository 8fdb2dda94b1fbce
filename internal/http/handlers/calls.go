package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/voxhealth/ivr-platform/internal/callflow"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// OrchestratorFactory builds a call orchestrator around the given voice
// channel. The rest of the dependencies are fixed at wiring time.
type OrchestratorFactory func(speech callflow.SpeechClient) (*callflow.Orchestrator, error)

// CallsHandler runs simulated calls over HTTP for supervised testing: the
// request body scripts the caller's side of the conversation.
type CallsHandler struct {
	factory OrchestratorFactory
	logger  *logging.Logger
}

// NewCallsHandler creates the handler.
func NewCallsHandler(factory OrchestratorFactory, logger *logging.Logger) *CallsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallsHandler{factory: factory, logger: logger}
}

// StartCallRequest scripts one simulated call.
type StartCallRequest struct {
	// Replies are the caller's utterances, consumed in order.
	Replies []string `json:"replies"`
}

// StartCallResponse reports the finished call.
type StartCallResponse struct {
	Status string          `json:"status"`
	Result callflow.Result `json:"result"`
	Spoken []string        `json:"spoken"`
}

// Live answers the liveness probe used by the old GET route.
// Route: GET /calls/start
func (h *CallsHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Voice agent is live."})
}

// Start runs one scripted call to completion.
// Route: POST /calls/start
func (h *CallsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartCallRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	speech := callflow.NewScriptedSpeech(req.Replies...)
	orch, err := h.factory(speech)
	if err != nil {
		h.logger.Error("orchestrator build failed", "error", err)
		http.Error(w, "call setup failed", http.StatusInternalServerError)
		return
	}

	callID := uuid.NewString()
	result, err := orch.Run(r.Context(), callID)
	if err != nil {
		h.logger.Error("call flow failed", "error", err, "call_id", callID)
		http.Error(w, "call failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, StartCallResponse{
		Status: "Call finished",
		Result: result,
		Spoken: speech.Spoken,
	})
}
