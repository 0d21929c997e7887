package probe

import "fmt"

// StatusError is a non-2xx HTTP answer from a dashboard endpoint.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s failed with status code %d", e.URL, e.Code)
}

// APIError is a 2xx answer whose envelope reported success=false.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request rejected", e.Endpoint)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}
