/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/acronis/go-quotakit/log"
)

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// ErrorResponseData is the body of every error response except the quota rejection.
type ErrorResponseData struct {
	Err *Error `json:"error"`
}

func (e *ErrorResponseData) Error() string {
	if e.Err == nil {
		return "API error without details"
	}
	return "API error: " + e.Err.Error()
}

// RespondJSON writes respData as JSON with 200 status code.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondCodeAndJSON writes respData as JSON with the given status code.
// HTML characters are not escaped. Content-Type is set to application/json unless the handler has set it already.
// A nil respData produces an empty body.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger log.FieldLogger) {
	logger = log.OrDisabled(logger)
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(respData); err != nil {
		logger.Error("failed to marshal response body", log.Error(err))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	body := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})

	if rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", ContentTypeAppJSON)
	}
	rw.WriteHeader(statusCode)
	if _, err := rw.Write(body); err != nil {
		logger.Error("failed to write response body", log.Error(err))
	}
}

// RespondError writes apiErr wrapped into ErrorResponseData, logs it and counts it in the response errors metric.
func RespondError(rw http.ResponseWriter, httpStatusCode int, apiErr *Error, logger log.FieldLogger) {
	logger = log.OrDisabled(logger)
	fields := []log.Field{
		log.Int("status", httpStatusCode),
		log.String("error_code", apiErr.Code),
		log.String("error_message", apiErr.Message),
	}
	if len(apiErr.Context) != 0 {
		ctxLines := make([]string, 0, len(apiErr.Context))
		for k, v := range apiErr.Context {
			ctxLines = append(ctxLines, fmt.Sprintf("%s: %v", k, v))
		}
		sort.Strings(ctxLines)
		fields = append(fields, log.Strings("error_context", ctxLines))
	}
	logger.Error("error in response", fields...)
	countResponseError(apiErr)

	RespondCodeAndJSON(rw, httpStatusCode, ErrorResponseData{Err: apiErr}, logger)
}
