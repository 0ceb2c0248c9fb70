package services

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// ErrRequestInFlight is returned when a conversation already has a request
// outstanding.
var ErrRequestInFlight = &ConflictError{Message: "A response is already being generated for this conversation"}

// ErrUpstreamBusy is returned when the requests-per-minute budget cannot be
// met before the caller's deadline.
var ErrUpstreamBusy = &RateLimitError{Message: "Too many requests to the model, please try again shortly"}
