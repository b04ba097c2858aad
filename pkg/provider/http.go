package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 15 * time.Second

// NewHTTPClient returns a client with the given timeout, DefaultTimeout when zero.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// DoJSON sends req and decodes a 2xx JSON body into out. Failures come back as
// *RequestError; expired deadlines also match ErrNetworkTimeout.
func DoJSON(client *http.Client, req *http.Request, op string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return &RequestError{Op: op, Err: fmt.Errorf("%w: %v", ErrNetworkTimeout, err)}
		}
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode) + bodySuffix(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if IsTimeout(err) {
			return &RequestError{Op: op, Err: fmt.Errorf("%w: %v", ErrNetworkTimeout, err)}
		}
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func bodySuffix(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return ": " + string(body)
}
