package service

import "webhook-engine/internal/core/domain"

// SamplePayload returns deterministic representative data for a test
// delivery of the given event type.
func SamplePayload(eventType string) map[string]any {
	switch eventType {
	case domain.EventBookingCreated, domain.EventBookingUpdated,
		domain.EventBookingCancelled, domain.EventBookingCompleted:
		return map[string]any{
			"booking_id": 1001,
			"client_id":  501,
			"service":    "Haircut",
			"starts_at":  "2025-01-15T10:00:00Z",
			"ends_at":    "2025-01-15T10:30:00Z",
			"status":     bookingStatusFor(eventType),
		}
	case domain.EventPaymentCompleted, domain.EventPaymentFailed, domain.EventPaymentRefunded:
		return map[string]any{
			"payment_id": 2001,
			"booking_id": 1001,
			"amount":     "45.00",
			"currency":   "USD",
			"status":     paymentStatusFor(eventType),
		}
	case domain.EventClientCreated, domain.EventClientUpdated:
		return map[string]any{
			"client_id": 501,
			"name":      "Jordan Sample",
			"email":     "jordan@example.com",
			"phone":     "+15550100",
		}
	}
	return map[string]any{"event_type": eventType}
}

func bookingStatusFor(eventType string) string {
	switch eventType {
	case domain.EventBookingCancelled:
		return "cancelled"
	case domain.EventBookingCompleted:
		return "completed"
	default:
		return "confirmed"
	}
}

func paymentStatusFor(eventType string) string {
	switch eventType {
	case domain.EventPaymentFailed:
		return "failed"
	case domain.EventPaymentRefunded:
		return "refunded"
	default:
		return "completed"
	}
}
