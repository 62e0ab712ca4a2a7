/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

type errorRespData struct {
	Error *struct {
		Domain string `json:"domain"`
		Code   string `json:"code"`
	} `json:"error"`
}

// RequireErrorInRecorder asserts that the recorded response has the given status code
// and carries a JSON error envelope ({"error": {"domain": ..., "code": ...}}) with the given domain and code.
func RequireErrorInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code)
	requireJSONContentType(t, resp)
	var data errorRespData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &data), "response body: %s", resp.Body.String())
	require.NotNil(t, data.Error, "response body has no error envelope: %s", resp.Body.String())
	require.Equal(t, wantErrDomain, data.Error.Domain)
	require.Equal(t, wantErrCode, data.Error.Code)
}

// RequireJSONInRecorder asserts that the recorded response has the given status code and decodes its JSON body into dst.
func RequireJSONInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, dst interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code, "response body: %s", resp.Body.String())
	requireJSONContentType(t, resp)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), dst), "response body: %s", resp.Body.String())
}

func requireJSONContentType(t require.TestingT, resp *httptest.ResponseRecorder) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	contentType := resp.Header().Get("Content-Type")
	require.True(t, strings.HasPrefix(contentType, contentTypeAppJSON), "unexpected Content-Type %q", contentType)
}
