package soaring

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when fewer than MinObservations readings are available.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrConfig marks configuration problems that abort a whole cycle.
	ErrConfig = errors.New("configuration error")
)

// ProviderError wraps a failed station data fetch.
type ProviderError struct {
	Provider string
	Station  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: station %s: %v", e.Provider, e.Station, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StoreError wraps a failed notification history read or write.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DeliveryError wraps a failed notification send.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Category maps an error onto the metrics error taxonomy.
func Category(err error) ErrorCategory {
	var (
		pe *ProviderError
		se *StoreError
		de *DeliveryError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return ErrorInsufficientData
	case errors.As(err, &pe):
		return ErrorProvider
	case errors.As(err, &se):
		return ErrorStore
	case errors.As(err, &de):
		return ErrorDelivery
	case errors.Is(err, ErrConfig):
		return ErrorConfig
	default:
		return ErrorOther
	}
}
