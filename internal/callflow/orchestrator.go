package callflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxhealth/ivr-platform/internal/bookings"
	"github.com/voxhealth/ivr-platform/internal/identity"
	"github.com/voxhealth/ivr-platform/internal/notify"
	"github.com/voxhealth/ivr-platform/internal/observability/metrics"
	"github.com/voxhealth/ivr-platform/internal/scheduling"
	"github.com/voxhealth/ivr-platform/internal/session"
	"github.com/voxhealth/ivr-platform/internal/summary"
	"github.com/voxhealth/ivr-platform/internal/transcript"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// Authorizer is the slice of the OAuth client the call flow needs.
type Authorizer interface {
	BuildAuthorizeURL(ctx context.Context, sessionID string) (string, error)
	ValidAccessToken(ctx context.Context, sessionID string) (string, bool)
}

// ConsoleEvent is pushed to the supervised-testing console. The authorize URL
// is never spoken to the caller; the console is the only place it appears.
type ConsoleEvent struct {
	CallID string `json:"call_id"`
	Kind   string `json:"kind"` // "auth_url" or "transcript"
	Text   string `json:"text"`
}

// BookingLedger persists confirmed bookings for later review.
type BookingLedger interface {
	RecordConfirmed(ctx context.Context, b bookings.ConfirmedBooking) (*bookings.ConfirmedBooking, error)
}

// PollPolicy bounds the authorization wait. The loop always ends: either a
// token shows up or the call degrades to manual routing.
type PollPolicy struct {
	Interval time.Duration
	Attempts int
}

// DefaultPollPolicy is 5s cadence with a two minute ceiling.
var DefaultPollPolicy = PollPolicy{Interval: 5 * time.Second, Attempts: 24}

// Result reports how a call ended.
type Result struct {
	CallID        string `json:"call_id"`
	FinalState    State  `json:"final_state"`
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"` // record-linked mode was reached
	Intent        Intent `json:"intent,omitempty"`
	BookingID     string `json:"booking_id,omitempty"`
	Summary       string `json:"summary,omitempty"`
}

// Orchestrator drives one call from greeting to goodbye. Every prompt and
// caller response is recorded before the state machine advances, so a summary
// can be produced no matter where the call ends.
type Orchestrator struct {
	speech        SpeechClient
	validator     *identity.Validator
	authorizer    Authorizer
	sessions      session.Store
	scheduler     scheduling.Client
	recorder      transcript.Recorder
	summarizer    summary.Summarizer
	confirmations *notify.ConfirmationService
	ledger        BookingLedger
	classifier    Classifier
	metrics       *metrics.CallMetrics
	logger        *logging.Logger

	poll          PollPolicy
	searchWindow  time.Duration
	listenTimeout time.Duration
	console       func(ConsoleEvent)
	now           func() time.Time
}

// OrchestratorDeps carries the collaborators for NewOrchestrator. Speech,
// validator, sessions and recorder are required; the rest degrade gracefully
// when absent.
type OrchestratorDeps struct {
	Speech        SpeechClient
	Validator     *identity.Validator
	Authorizer    Authorizer
	Sessions      session.Store
	Scheduler     scheduling.Client
	Recorder      transcript.Recorder
	Summarizer    summary.Summarizer
	Confirmations *notify.ConfirmationService
	Ledger        BookingLedger
	Classifier    Classifier
	Metrics       *metrics.CallMetrics
	Logger        *logging.Logger
	Poll          PollPolicy
	SearchWindow  time.Duration // slot search horizon; zero lets the scheduler default apply
	ListenTimeout time.Duration // per-utterance listen bound; zero waits indefinitely
	Console       func(ConsoleEvent)
}

// NewOrchestrator wires a call orchestrator.
func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Speech == nil {
		return nil, errors.New("callflow: speech client is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("callflow: identity validator is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("callflow: session store is required")
	}
	if deps.Recorder == nil {
		return nil, errors.New("callflow: transcript recorder is required")
	}
	if deps.Classifier == nil {
		deps.Classifier = KeywordClassifier{}
	}
	if deps.Summarizer == nil {
		deps.Summarizer = summary.StaticSummarizer{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	poll := deps.Poll
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollPolicy.Interval
	}
	if poll.Attempts <= 0 {
		poll.Attempts = DefaultPollPolicy.Attempts
	}
	return &Orchestrator{
		speech:        deps.Speech,
		validator:     deps.Validator,
		authorizer:    deps.Authorizer,
		sessions:      deps.Sessions,
		scheduler:     deps.Scheduler,
		recorder:      deps.Recorder,
		summarizer:    deps.Summarizer,
		confirmations: deps.Confirmations,
		ledger:        deps.Ledger,
		classifier:    deps.Classifier,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		poll:          poll,
		searchWindow:  deps.SearchWindow,
		listenTimeout: deps.ListenTimeout,
		console:       deps.Console,
		now:           time.Now,
	}, nil
}

// Run handles one complete call. It never returns a transport error from a
// collaborator: every failure path ends in a spoken message and a final state.
func (o *Orchestrator) Run(ctx context.Context, callID string) (Result, error) {
	started := o.now()
	result := Result{CallID: callID, FinalState: StateIdle}
	defer func() {
		o.metrics.ObserveCall(string(result.FinalState), o.now().Sub(started).Seconds())
	}()

	if err := o.say(ctx, callID, "Incoming call. Connecting now."); err != nil {
		result.FinalState = StateComplete
		return result, err
	}

	// Authenticating: one attempt, terminal on failure.
	result.FinalState = StateAuthenticating
	customer, err := o.authenticate(ctx, callID)
	if err != nil {
		if errors.Is(err, identity.ErrValidationFailed) {
			_ = o.say(ctx, callID, "Authentication failed.")
			result.FinalState = StateRejected
			return result, nil
		}
		result.FinalState = StateComplete
		return result, err
	}
	result.Authenticated = true
	_ = o.say(ctx, callID, fmt.Sprintf("Welcome %s.", customer.FirstName))

	// AwaitingIntentChoice: connected mode or manual mode.
	result.FinalState = StateAwaitingIntentChoice
	_ = o.say(ctx, callID, "If you want me to connect to your patient record, say connect. Otherwise say manual.")
	choice, err := o.hear(ctx, callID)
	if err != nil {
		result.FinalState = StateComplete
		return result, err
	}

	if wantsConnect(choice) && o.authorizer != nil {
		sessionID, connected := o.offerAndPoll(ctx, callID, &result)
		if connected {
			result.Connected = true
			o.routeConnectedIntent(ctx, callID, customer, sessionID, &result)
			o.finishCall(ctx, callID, &result)
			return result, nil
		}
		_ = o.say(ctx, callID, "Login not detected. Continuing without your record.")
	}

	// Manual mode: same intent handling, no record link.
	result.FinalState = StateManualIntentRouting
	_ = o.say(ctx, callID, "How can I help you?")
	utterance, _ := o.hear(ctx, callID)
	result.Intent = o.classifier.Classify(utterance)
	o.handleManualIntent(ctx, callID, customer, result.Intent)
	o.finishCall(ctx, callID, &result)
	return result, nil
}

// authenticate collects the three identity answers and validates them as one
// unit.
func (o *Orchestrator) authenticate(ctx context.Context, callID string) (*identity.CustomerRecord, error) {
	_ = o.say(ctx, callID, "Please say your registered phone number.")
	phone, err := o.hear(ctx, callID)
	if err != nil {
		return nil, err
	}
	_ = o.say(ctx, callID, "Say the last four digits of your social security number.")
	last4, err := o.hear(ctx, callID)
	if err != nil {
		return nil, err
	}
	_ = o.say(ctx, callID, "Say your date of birth.")
	dob, err := o.hear(ctx, callID)
	if err != nil {
		return nil, err
	}
	return o.validator.Validate(ctx, phone, last4, dob)
}

// offerAndPoll starts an authorization session and waits, bounded, for the
// caller to complete the login in their browser.
func (o *Orchestrator) offerAndPoll(ctx context.Context, callID string, result *Result) (string, bool) {
	result.FinalState = StateConsentOffered

	sessionID, err := o.sessions.Create(ctx)
	if err != nil {
		o.logger.Error("session create failed", "error", err, "call_id", callID)
		return "", false
	}
	authURL, err := o.authorizer.BuildAuthorizeURL(ctx, sessionID)
	if err != nil {
		o.logger.Error("authorize url build failed", "error", err, "call_id", callID)
		return "", false
	}
	o.emit(ConsoleEvent{CallID: callID, Kind: "auth_url", Text: authURL})
	o.logger.Info("authorize url issued", "call_id", callID, "session_id", sessionID)

	_ = o.say(ctx, callID, "I sent a secure login link to the console. Open the link and sign in; I will continue automatically.")

	result.FinalState = StatePollingAuthorization
	for attempt := 0; attempt < o.poll.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			o.metrics.ObservePollOutcome("cancelled")
			return sessionID, false
		case <-time.After(o.poll.Interval):
		}
		ok, err := o.sessions.HasToken(ctx, sessionID)
		if err != nil {
			o.logger.Warn("token poll failed", "error", err, "session_id", sessionID)
			continue
		}
		if ok {
			o.metrics.ObservePollOutcome("token_acquired")
			return sessionID, true
		}
	}
	o.metrics.ObservePollOutcome("deadline_exceeded")
	return sessionID, false
}

// routeConnectedIntent handles the authenticated, record-linked path. A
// non-scheduling intent degrades to the same manual handling used without a
// token.
func (o *Orchestrator) routeConnectedIntent(ctx context.Context, callID string, customer *identity.CustomerRecord, sessionID string, result *Result) {
	result.FinalState = StateIntentRouting
	_ = o.say(ctx, callID, "You are connected. How can I help you today?")
	utterance, _ := o.hear(ctx, callID)
	result.Intent = o.classifier.Classify(utterance)

	if result.Intent != IntentDoctorSchedule || o.scheduler == nil {
		result.FinalState = StateManualIntentRouting
		o.handleManualIntent(ctx, callID, customer, result.Intent)
		return
	}

	_ = o.say(ctx, callID, "Which specialty do you need?")
	specialty, _ := o.hear(ctx, callID)

	token, ok := o.authorizer.ValidAccessToken(ctx, sessionID)
	if !ok {
		_ = o.say(ctx, callID, "I lost the connection to your record. Let's continue without it.")
		result.FinalState = StateManualIntentRouting
		o.handleManualIntent(ctx, callID, customer, result.Intent)
		return
	}
	patientID, err := o.sessions.PatientID(ctx, sessionID)
	if err != nil {
		o.logger.Warn("patient id lookup failed", "error", err, "session_id", sessionID)
	}

	search := scheduling.SearchRequest{
		PatientID:   patientID,
		AccessToken: token,
		Specialty:   specialty,
	}
	if o.searchWindow > 0 {
		search.WindowEnd = o.now().Add(o.searchWindow)
	}
	slots, err := o.scheduler.FindSlots(ctx, search)
	if err != nil {
		var searchErr *scheduling.SlotSearchError
		if errors.As(err, &searchErr) && searchErr.AuthFailure() {
			o.logger.Warn("slot search rejected token", "session_id", sessionID, "status", searchErr.StatusCode)
		} else {
			o.logger.Error("slot search failed", "error", err, "session_id", sessionID)
		}
		_ = o.say(ctx, callID, "I couldn't find any appointments.")
		result.FinalState = StateNoBookingMade
		return
	}
	if len(slots) == 0 {
		_ = o.say(ctx, callID, "No slots available.")
		result.FinalState = StateNoBookingMade
		return
	}

	o.offerAndBook(ctx, callID, customer, patientID, token, slots, result)
}

// offerAndBook presents up to three slots, takes one selection, and books.
// A conflict re-offers the remaining alternatives exactly once.
func (o *Orchestrator) offerAndBook(ctx context.Context, callID string, customer *identity.CustomerRecord, patientID, token string, slots []scheduling.Slot, result *Result) {
	for round := 0; round < 2; round++ {
		result.FinalState = StateSlotPresentation
		offered := slots
		if len(offered) > maxOfferedSlots {
			offered = offered[:maxOfferedSlots]
		}
		for i, s := range offered {
			provider := s.ProviderName
			if provider == "" {
				provider = "the provider"
			}
			_ = o.say(ctx, callID, fmt.Sprintf("Option %d: %s with %s.", i+1, s.HumanStart(), provider))
		}

		result.FinalState = StateSlotSelectionAwait
		_ = o.say(ctx, callID, "Say the option number to book.")
		choice, _ := o.hear(ctx, callID)

		idx, ok := selectSlot(choice, len(offered))
		if !ok {
			_ = o.say(ctx, callID, "No appointment booked.")
			result.FinalState = StateNoBookingMade
			return
		}
		selected := offered[idx]

		result.FinalState = StateBooking
		booking, err := o.scheduler.BookSlot(ctx, patientID, selected, token)
		if err == nil {
			o.metrics.ObserveBooking("booked")
			result.BookingID = booking.ID
			_ = o.say(ctx, callID, "Your appointment is booked.")
			o.confirmBooking(ctx, callID, customer, booking, result)
			return
		}

		var conflict *scheduling.BookingConflictError
		if errors.As(err, &conflict) && round == 0 {
			o.metrics.ObserveBooking("conflict")
			o.logger.Info("slot already taken, re-offering", "slot_id", conflict.SlotID, "call_id", callID)
			remaining := make([]scheduling.Slot, 0, len(slots)-1)
			for _, s := range slots {
				if s.ID != selected.ID {
					remaining = append(remaining, s)
				}
			}
			if len(remaining) == 0 {
				_ = o.say(ctx, callID, "That time was just taken and no others are open. No appointment booked.")
				result.FinalState = StateNoBookingMade
				return
			}
			_ = o.say(ctx, callID, "That time was just taken. Here are the remaining options.")
			slots = remaining
			continue
		}

		o.metrics.ObserveBooking("failed")
		o.logger.Error("booking failed", "error", err, "call_id", callID)
		_ = o.say(ctx, callID, "I'm sorry, I couldn't book that appointment.")
		result.FinalState = StateBookingFailed
		return
	}
}

// confirmBooking persists the booking, then runs the best-effort summary and
// confirmation email. An email failure is reported to the caller but the
// booking stands.
func (o *Orchestrator) confirmBooking(ctx context.Context, callID string, customer *identity.CustomerRecord, booking *scheduling.Booking, result *Result) {
	if o.ledger != nil && booking != nil {
		rec := bookings.ConfirmedBooking{
			CallID:        callID,
			AppointmentID: booking.ID,
			ProviderName:  booking.ProviderName,
			Location:      booking.Location,
			StartTime:     booking.Start,
		}
		if customer != nil {
			rec.CustomerID = customer.ID
		}
		if _, err := o.ledger.RecordConfirmed(ctx, rec); err != nil {
			o.logger.Warn("booking ledger write failed", "error", err, "call_id", callID)
		}
	}

	result.FinalState = StateSummarizing
	entries, err := o.recorder.Entries(ctx, callID)
	if err != nil {
		o.logger.Warn("transcript read failed", "error", err, "call_id", callID)
	}
	summaryText, err := o.summarizer.Summarize(ctx, entries)
	if err != nil {
		o.logger.Warn("summary generation failed", "error", err, "call_id", callID)
		summaryText = ""
	}
	result.Summary = summaryText

	result.FinalState = StateNotifyAndClose
	if o.confirmations != nil && customer != nil {
		err := o.confirmations.SendAppointmentConfirmation(ctx,
			customer.Email, customer.Name(), booking, summaryText)
		if err != nil {
			o.metrics.ObserveEmail(false)
			o.logger.Error("confirmation email failed", "error", err, "call_id", callID)
			_ = o.say(ctx, callID, "Email sending failed.")
		} else if customer.Email != "" {
			o.metrics.ObserveEmail(true)
			_ = o.say(ctx, callID, "Confirmation email sent.")
		}
	}
}

// finishCall speaks the goodbye and marks the call complete.
func (o *Orchestrator) finishCall(ctx context.Context, callID string, result *Result) {
	_ = o.say(ctx, callID, "Goodbye.")
	result.FinalState = StateComplete
}

// handleManualIntent answers the non-connected intents.
func (o *Orchestrator) handleManualIntent(ctx context.Context, callID string, customer *identity.CustomerRecord, intent Intent) {
	switch intent {
	case IntentBenefitEligibility:
		plan := customer.Plan
		if plan == "" {
			plan = "your"
		}
		_ = o.say(ctx, callID, fmt.Sprintf("Your %s plan is active. You have outpatient and prescription coverage.", plan))

	case IntentDoctorSchedule:
		_ = o.say(ctx, callID, "Sure. What specialty do you need, or do you want a primary care physician?")
		specialty, _ := o.hear(ctx, callID)
		if specialty == "" {
			_ = o.say(ctx, callID, "I didn't catch that.")
			return
		}
		_ = o.say(ctx, callID, "I found two available primary care appointments next week. Do you want me to book the first one?")
		confirmation, _ := o.hear(ctx, callID)
		if strings.Contains(strings.ToLower(confirmation), "yes") {
			_ = o.say(ctx, callID, "Done. Your appointment is booked. You will receive a confirmation via email.")
		} else {
			_ = o.say(ctx, callID, "Okay, no appointment booked.")
		}

	case IntentPasswordReset:
		_ = o.say(ctx, callID, "I can send a password reset link to your registered email address. Would you like me to proceed?")
		confirm, _ := o.hear(ctx, callID)
		if strings.Contains(strings.ToLower(confirm), "yes") {
			_ = o.say(ctx, callID, "A password reset link has been sent. Please check your email.")
		} else {
			_ = o.say(ctx, callID, "Okay, no reset initiated.")
		}

	default:
		_ = o.say(ctx, callID, "I can help with checking benefits, scheduling doctors, or resetting passwords.")
	}
}

// say speaks a prompt and records it before the flow moves on.
func (o *Orchestrator) say(ctx context.Context, callID, text string) error {
	if err := o.recorder.Append(ctx, callID, transcript.Entry{Role: transcript.RoleAgent, Text: text}); err != nil {
		o.logger.Warn("transcript append failed", "error", err, "call_id", callID)
	}
	o.emit(ConsoleEvent{CallID: callID, Kind: "transcript", Text: "agent: " + text})
	return o.speech.Speak(ctx, text)
}

// hear captures one utterance and records it before the flow moves on. A
// configured listen timeout bounds how long the channel may wait for speech.
func (o *Orchestrator) hear(ctx context.Context, callID string) (string, error) {
	if o.listenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.listenTimeout)
		defer cancel()
	}
	utterance, err := o.speech.ListenOnce(ctx)
	if err != nil {
		return "", fmt.Errorf("callflow: listen: %w", err)
	}
	if err := o.recorder.Append(ctx, callID, transcript.Entry{Role: transcript.RoleCaller, Text: utterance}); err != nil {
		o.logger.Warn("transcript append failed", "error", err, "call_id", callID)
	}
	o.emit(ConsoleEvent{CallID: callID, Kind: "transcript", Text: "caller: " + utterance})
	return utterance, nil
}

func (o *Orchestrator) emit(ev ConsoleEvent) {
	if o.console != nil {
		o.console(ev)
	}
}

func wantsConnect(choice string) bool {
	return containsAny(strings.ToLower(choice), "connect", "record", "epic")
}
