package services

// Custom errors
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// DeliveryError wraps a failure reported by the email provider.
type DeliveryError struct {
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string { return e.Provider + " delivery failed: " + e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }
