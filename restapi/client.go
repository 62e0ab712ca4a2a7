/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/acronis/go-quotakit/log"
)

const (
	logKeyMethod = "method"
	logKeyURI    = "uri"
	logKeyStatus = "status"
)

const maxErrorBodyInMessage = 255

// DoRequest does the HTTP request and logs its details.
func DoRequest(client *http.Client, req *http.Request, logger log.FieldLogger) (*http.Response, error) {
	logger = log.OrDisabled(logger)
	logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("sent request", log.String(logKeyMethod, req.Method), log.String(logKeyURI, req.URL.String()))
	})

	resp, err := client.Do(req)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to do http request %s %s", req.Method, req.URL.String()),
			log.String(logKeyMethod, req.Method),
			log.String(logKeyURI, req.URL.String()),
			log.Error(err),
		)
		return nil, &ClientError{Method: req.Method, URL: req.URL, Message: "do request", Err: err}
	}

	logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("got response",
			log.String(logKeyMethod, req.Method),
			log.String(logKeyURI, req.URL.String()),
			log.Int(logKeyStatus, resp.StatusCode),
		)
	})
	return resp, nil
}

// GetJSON does a GET request and unmarshals the JSON response into result.
// Non-2xx responses are returned as *ClientError with the status code set.
func GetJSON(ctx context.Context, client *http.Client, url string, result interface{}, logger log.FieldLogger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeAppJSON)
	return DoRequestAndUnmarshalJSON(client, req, result, logger)
}

// DoRequestAndUnmarshalJSON does the HTTP request and unmarshals the JSON response into result.
func DoRequestAndUnmarshalJSON(client *http.Client, req *http.Request, result interface{}, logger log.FieldLogger) error {
	logger = log.OrDisabled(logger)
	resp, err := DoRequest(client, req, logger)
	if err != nil {
		return err // already logged
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close response body after doing http request", log.Error(closeErr))
		}
	}()

	logger = logger.With(
		log.String(logKeyMethod, req.Method),
		log.String(logKeyURI, req.URL.String()),
		log.Int(logKeyStatus, resp.StatusCode),
	)
	e := &ClientError{Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("error reading response body", log.Error(err))
		return e.wrap("reading response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponseData
		if strings.Contains(resp.Header.Get("Content-Type"), ContentTypeAppJSON) && json.Unmarshal(buf, &apiErr) == nil && apiErr.Err != nil {
			return e.wrap("error response", &apiErr)
		}
		body := string(buf)
		if len(body) > maxErrorBodyInMessage {
			body = body[:maxErrorBodyInMessage]
		}
		e.Message = fmt.Sprintf("unexpected status code, body: %q", body)
		return e
	}

	if result == nil {
		return nil
	}
	if err = json.Unmarshal(buf, result); err != nil {
		logger.Error("error unmarshaling response", log.Error(err))
		return e.wrap("unmarshaling response", err)
	}
	return nil
}
