package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxhealth/ivr-platform/internal/scheduling"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// ConfirmationService sends the post-booking confirmation email.
type ConfirmationService struct {
	sender EmailSender
	logger *logging.Logger
}

// NewConfirmationService creates a confirmation service over any sender.
func NewConfirmationService(sender EmailSender, logger *logging.Logger) *ConfirmationService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationService{sender: sender, logger: logger}
}

// SendAppointmentConfirmation emails the caller their booked appointment plus
// the call summary. A missing address skips the send without error.
func (s *ConfirmationService) SendAppointmentConfirmation(ctx context.Context, toEmail, patientName string, booking *scheduling.Booking, summary string) error {
	if toEmail == "" {
		s.logger.Info("no email on record, skipping confirmation", "patient", patientName)
		return nil
	}
	if s.sender == nil {
		return fmt.Errorf("notify: no email sender configured")
	}

	msg := EmailMessage{
		To:      toEmail,
		ToName:  patientName,
		Subject: fmt.Sprintf("Appointment Confirmation for %s", patientName),
		Body:    confirmationBody(patientName, booking, summary),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: confirmation email: %w", err)
	}
	return nil
}

func confirmationBody(patientName string, booking *scheduling.Booking, summary string) string {
	when := "your scheduled time"
	provider := "Your Provider"
	location := "Clinic"
	if booking != nil {
		if !booking.Start.IsZero() {
			when = booking.Start.Format("Monday, January 2, 2006 at 3:04 PM")
		}
		if booking.ProviderName != "" {
			provider = booking.ProviderName
		}
		if booking.Location != "" {
			location = booking.Location
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", patientName)
	b.WriteString("Your appointment has been successfully booked.\n\n")
	fmt.Fprintf(&b, "Date & Time: %s\n", when)
	fmt.Fprintf(&b, "Provider: %s\n", provider)
	fmt.Fprintf(&b, "Location: %s\n", location)
	if summary != "" {
		b.WriteString("\n------------------------------\n")
		b.WriteString("Call Summary\n")
		b.WriteString(summary)
		b.WriteString("\n------------------------------\n")
	}
	b.WriteString("\nThank you,\nClinic Virtual Assistant\n")
	return b.String()
}
