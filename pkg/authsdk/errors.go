package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is the error envelope the service writes for every non-2xx
// response.
type APIError struct {
	Path      string    `json:"path"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Path, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// parseErrorResponse builds an APIError from a response body. Bodies that are
// not an envelope (a proxy page, say) still yield the status code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Status == 0 {
		apiErr = &APIError{
			Path:    resp.Request.URL.Path,
			Message: http.StatusText(resp.StatusCode),
		}
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
