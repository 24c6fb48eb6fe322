package usecase

// Event names on the bus. Payloads are minimal; listeners fetch the rest
// from storage by id.
const (
	EventOrderPaymentCompleted      = "order_payment_completed"
	EventPointOrderPaymentCompleted = "point_order_payment_completed"
	EventOrderProcessingCompleted   = "order_processing_completed"
	EventOrderProcessingFailed      = "order_processing_failed"
)
