package callflow

// State names one phase of the per-call state machine.
type State string

const (
	StateIdle                 State = "Idle"
	StateAuthenticating       State = "Authenticating"
	StateRejected             State = "Rejected"
	StateAwaitingIntentChoice State = "AwaitingIntentChoice"
	StateConsentOffered       State = "ConsentOffered"
	StatePollingAuthorization State = "PollingAuthorization"
	StateIntentRouting        State = "IntentRouting"
	StateManualIntentRouting  State = "ManualIntentRouting"
	StateSlotPresentation     State = "SlotPresentation"
	StateSlotSelectionAwait   State = "SlotSelectionAwait"
	StateBooking              State = "Booking"
	StateNoBookingMade        State = "NoBookingMade"
	StateBookingFailed        State = "BookingFailed"
	StateSummarizing          State = "Summarizing"
	StateNotifyAndClose       State = "NotifyAndClose"
	StateComplete             State = "Complete"
)
