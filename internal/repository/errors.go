package repository

import (
	"github.com/kjstillabower/weather-cache/internal/client"
)

// FetchError is the failure side of a fetch. Category is one of the
// client.ErrorCategory values; Message is safe to show to end users.
type FetchError struct {
	Category client.ErrorCategory
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

var categoryMessages = map[client.ErrorCategory]string{
	client.ErrorCategoryConfiguration:  "weather API key is not configured",
	client.ErrorCategoryNameResolution: "unable to reach the weather service: check network connectivity and DNS",
	client.ErrorCategoryAuthentication: "weather service rejected the API key: it may be invalid or not yet activated",
	client.ErrorCategoryNotFound:       "weather service returned not found: check the city name and API endpoint",
	client.ErrorCategoryTimeout:        "weather service request timed out",
	client.ErrorCategoryTLS:            "secure connection to the weather service failed: check the system clock and certificates",
}

// newFetchError classifies err and attaches the message for its category.
func newFetchError(err error) *FetchError {
	category := client.Classify(err)
	msg, ok := categoryMessages[category]
	if !ok {
		category = client.ErrorCategoryUnknown
		msg = "weather request failed: " + err.Error()
	}
	return &FetchError{Category: category, Message: msg, Err: err}
}
