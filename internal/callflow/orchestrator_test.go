package callflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhealth/ivr-platform/internal/bookings"
	"github.com/voxhealth/ivr-platform/internal/identity"
	"github.com/voxhealth/ivr-platform/internal/notify"
	"github.com/voxhealth/ivr-platform/internal/scheduling"
	"github.com/voxhealth/ivr-platform/internal/session"
	"github.com/voxhealth/ivr-platform/internal/transcript"
)

// fakeAuthorizer optionally plants a token when the authorize URL is built,
// simulating a caller who completes the browser login immediately.
type fakeAuthorizer struct {
	store       session.Store
	grantOnURL  bool
	accessToken string
}

func (f *fakeAuthorizer) BuildAuthorizeURL(ctx context.Context, sessionID string) (string, error) {
	if f.grantOnURL {
		err := f.store.SetToken(ctx, sessionID, session.Token{
			AccessToken: f.accessToken,
			ExpiresAt:   time.Now().Add(time.Hour),
		})
		if err != nil {
			return "", err
		}
		if err := f.store.SetPatientID(ctx, sessionID, "pat-1"); err != nil {
			return "", err
		}
	}
	return "https://auth.example.com/authorize?state=" + sessionID, nil
}

func (f *fakeAuthorizer) ValidAccessToken(ctx context.Context, sessionID string) (string, bool) {
	sess, err := f.store.Get(ctx, sessionID)
	if err != nil || sess.Token.AccessToken == "" {
		return "", false
	}
	return sess.Token.AccessToken, true
}

type fakeScheduler struct {
	slots       []scheduling.Slot
	findErr     error
	bookErrs    map[string]error // per slot id
	bookedSlots []string
}

func (f *fakeScheduler) FindSlots(context.Context, scheduling.SearchRequest) ([]scheduling.Slot, error) {
	return f.slots, f.findErr
}

func (f *fakeScheduler) BookSlot(_ context.Context, _ string, slot scheduling.Slot, _ string) (*scheduling.Booking, error) {
	if err := f.bookErrs[slot.ID]; err != nil {
		return nil, err
	}
	f.bookedSlots = append(f.bookedSlots, slot.ID)
	return &scheduling.Booking{ID: "booked-" + slot.ID, Start: slot.Start, ProviderName: slot.ProviderName, Status: "booked"}, nil
}

func threeSlots() []scheduling.Slot {
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	return []scheduling.Slot{
		{ID: "s1", Start: base, ProviderName: "Dr. A"},
		{ID: "s2", Start: base.Add(time.Hour), ProviderName: "Dr. B"},
		{ID: "s3", Start: base.Add(2 * time.Hour), ProviderName: "Dr. C"},
	}
}

type fakeLedger struct {
	recorded []bookings.ConfirmedBooking
}

func (f *fakeLedger) RecordConfirmed(_ context.Context, b bookings.ConfirmedBooking) (*bookings.ConfirmedBooking, error) {
	f.recorded = append(f.recorded, b)
	return &b, nil
}

type testRig struct {
	speech    *ScriptedSpeech
	sessions  *session.MemoryStore
	scheduler *fakeScheduler
	sender    *notify.StubEmailSender
	ledger    *fakeLedger
	orch      *Orchestrator
}

func newRig(t *testing.T, scheduler *fakeScheduler, grantOnURL bool, replies ...string) *testRig {
	t.Helper()

	speech := NewScriptedSpeech(replies...)
	sessions := session.NewMemoryStore(0, nil)
	t.Cleanup(sessions.Close)
	sender := notify.NewStubEmailSender(nil)
	ledger := &fakeLedger{}

	orch, err := NewOrchestrator(OrchestratorDeps{
		Speech:        speech,
		Validator:     identity.NewValidator(seededRepo()),
		Authorizer:    &fakeAuthorizer{store: sessions, grantOnURL: grantOnURL, accessToken: "tok1"},
		Sessions:      sessions,
		Scheduler:     scheduler,
		Recorder:      transcript.NewMemoryRecorder(),
		Confirmations: notify.NewConfirmationService(sender, nil),
		Ledger:        ledger,
		Poll:          PollPolicy{Interval: 10 * time.Millisecond, Attempts: 3},
	})
	require.NoError(t, err)

	return &testRig{speech: speech, sessions: sessions, scheduler: scheduler, sender: sender, ledger: ledger, orch: orch}
}

func seededRepo() *identity.MemoryRepository {
	return identity.NewMemoryRepository(identity.CustomerRecord{
		ID:        42,
		FirstName: "Maria",
		LastName:  "Santos",
		Phone:     "5551234567",
		Last4SSN:  "9876",
		DOB:       "11/10/1986",
		Plan:      "Gold",
		Email:     "maria@example.com",
	})
}

const (
	answerPhone = "555-123-4567"
	answerLast4 = "9876"
	answerDOB   = "eleven ten nineteen eighty six"
)

func TestRunAuthenticationFailureIsTerminal(t *testing.T) {
	rig := newRig(t, &fakeScheduler{}, false,
		answerPhone, "0000", answerDOB)

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, StateRejected, result.FinalState)
	assert.False(t, result.Authenticated)
	assert.Contains(t, rig.speech.Spoken, "Authentication failed.")
}

func TestRunConnectedBookingSelectsSecondSlot(t *testing.T) {
	scheduler := &fakeScheduler{slots: threeSlots()}
	rig := newRig(t, scheduler, true,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"I need a doctor appointment",
		"dermatology",
		"two")

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.FinalState)
	assert.True(t, result.Connected)
	assert.Equal(t, IntentDoctorSchedule, result.Intent)
	// Caller said "two": the second slot, not the first.
	require.Equal(t, []string{"s2"}, scheduler.bookedSlots)
	assert.Equal(t, "booked-s2", result.BookingID)

	// Best-effort confirmation email went out.
	require.Len(t, rig.sender.Sent, 1)
	assert.Equal(t, "maria@example.com", rig.sender.Sent[0].To)
	assert.Contains(t, rig.speech.Spoken, "Confirmation email sent.")

	// The booking landed in the ledger attributed to the caller.
	require.Len(t, rig.ledger.recorded, 1)
	assert.Equal(t, "booked-s2", rig.ledger.recorded[0].AppointmentID)
	assert.Equal(t, int64(42), rig.ledger.recorded[0].CustomerID)
	assert.Equal(t, "call-1", rig.ledger.recorded[0].CallID)
}

func TestRunPollDeadlineFallsBackToManual(t *testing.T) {
	rig := newRig(t, &fakeScheduler{}, false,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"nothing really")
	rig.orch.poll = PollPolicy{Interval: time.Second, Attempts: 2}

	started := time.Now()
	result, err := rig.orch.Run(context.Background(), "call-1")
	elapsed := time.Since(started)
	require.NoError(t, err)

	assert.False(t, result.Connected)
	assert.Equal(t, StateComplete, result.FinalState)
	assert.Contains(t, rig.speech.Spoken, "Login not detected. Continuing without your record.")
	// Two 1-second attempts: at least 2s of waiting, and well under an
	// unbounded poll.
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestRunNoSelectionMeansNoBooking(t *testing.T) {
	scheduler := &fakeScheduler{slots: threeSlots()}
	rig := newRig(t, scheduler, true,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"book an appointment",
		"cardiology",
		"none of those")

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	assert.Empty(t, scheduler.bookedSlots)
	assert.Empty(t, result.BookingID)
	assert.Contains(t, rig.speech.Spoken, "No appointment booked.")
}

func TestRunBookingConflictReoffersOnce(t *testing.T) {
	scheduler := &fakeScheduler{
		slots:    threeSlots(),
		bookErrs: map[string]error{"s1": &scheduling.BookingConflictError{SlotID: "s1"}},
	}
	rig := newRig(t, scheduler, true,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"schedule a doctor",
		"dermatology",
		"one", // conflicts
		"one") // first of the remaining: s2

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	assert.Contains(t, rig.speech.Spoken, "That time was just taken. Here are the remaining options.")
	require.Equal(t, []string{"s2"}, scheduler.bookedSlots)
	assert.Equal(t, "booked-s2", result.BookingID)
}

func TestRunGenericBookingFailureApologizes(t *testing.T) {
	scheduler := &fakeScheduler{
		slots:    threeSlots(),
		bookErrs: map[string]error{"s1": &scheduling.BookingError{StatusCode: 500}},
	}
	rig := newRig(t, scheduler, true,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"book me in",
		"dermatology",
		"one")

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	assert.Empty(t, scheduler.bookedSlots)
	assert.Empty(t, result.BookingID)
	assert.Contains(t, rig.speech.Spoken, "I'm sorry, I couldn't book that appointment.")
	assert.Empty(t, rig.sender.Sent)
}

func TestRunSlotSearchFailureSpeaksNeutralMessage(t *testing.T) {
	scheduler := &fakeScheduler{findErr: &scheduling.SlotSearchError{StatusCode: 502}}
	rig := newRig(t, scheduler, true,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"doctor appointment",
		"dermatology")

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Empty(t, result.BookingID)
	assert.Contains(t, rig.speech.Spoken, "I couldn't find any appointments.")
}

func TestRunNonSchedulingIntentDegradesToManual(t *testing.T) {
	rig := newRig(t, &fakeScheduler{slots: threeSlots()}, true,
		answerPhone, answerLast4, answerDOB,
		"connect",
		"am I eligible for coverage?")

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	assert.True(t, result.Connected)
	assert.Equal(t, IntentBenefitEligibility, result.Intent)
	assert.Contains(t, rig.speech.Spoken, "Your Gold plan is active. You have outpatient and prescription coverage.")
}

func TestRunManualModeSkipsAuthorization(t *testing.T) {
	rig := newRig(t, &fakeScheduler{}, false,
		answerPhone, answerLast4, answerDOB,
		"manual",
		"reset my password",
		"yes")

	result, err := rig.orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	assert.False(t, result.Connected)
	assert.Equal(t, IntentPasswordReset, result.Intent)
	assert.Contains(t, rig.speech.Spoken, "A password reset link has been sent. Please check your email.")
}

func TestRunRecordsEveryExchange(t *testing.T) {
	recorder := transcript.NewMemoryRecorder()
	speech := NewScriptedSpeech(answerPhone, "0000", answerDOB)
	sessions := session.NewMemoryStore(0, nil)
	t.Cleanup(sessions.Close)

	orch, err := NewOrchestrator(OrchestratorDeps{
		Speech:    speech,
		Validator: identity.NewValidator(seededRepo()),
		Sessions:  sessions,
		Recorder:  recorder,
	})
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), "call-1")
	require.NoError(t, err)

	entries, err := recorder.Entries(context.Background(), "call-1")
	require.NoError(t, err)
	// Greeting + 3 prompt/answer pairs + the failure message.
	require.Len(t, entries, 8)
	assert.Equal(t, transcript.RoleAgent, entries[0].Role)
	assert.Equal(t, "Please say your registered phone number.", entries[1].Text)
	assert.Equal(t, answerPhone, entries[2].Text)
	assert.Equal(t, "Authentication failed.", entries[7].Text)
}
