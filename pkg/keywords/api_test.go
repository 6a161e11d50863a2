package keywords

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":7,"name":"Amy","active":true,"roles":["admin","qa"],"address":{"city":"Oslo"}}`)
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"name":  body["name"],
			"token": r.Header.Get("X-Token"),
		})
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		name   string
		target string
		data   string
		want   callSpec
	}{
		{"target only", "/users", "", callSpec{Method: "GET", Endpoint: "/users"}},
		{"method in data", "/users", "post", callSpec{Method: "POST", Endpoint: "/users"}},
		{"method and path", "", "DELETE /users/1", callSpec{Method: "DELETE", Endpoint: "/users/1"}},
		{"json", "/ignored", `{"method":"put","endpoint":"/users/1","payload":{"a":1}}`,
			callSpec{Method: "PUT", Endpoint: "/users/1", Payload: map[string]interface{}{"a": float64(1)}}},
		{"json keeps target", "/users", `{"method":"POST"}`, callSpec{Method: "POST", Endpoint: "/users"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCall(tt.target, tt.data))
		})
	}
}

func TestAPI_CallAndVerify(t *testing.T) {
	srv := newTestServer(t)
	api := NewAPI(APIConfig{BaseURL: srv.URL + "/"})
	ctx := context.Background()

	res := api.Call(ctx, core.Request{Target: "/users/7"})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "GET /users/7 -> 200")
	require.Len(t, res.Attachments, 1)
	assert.Equal(t, core.AttachmentResponse, res.Attachments[0].Name)

	assert.True(t, api.VerifyStatus(ctx, core.Request{}).Success)
	assert.True(t, api.VerifyStatus(ctx, core.Request{Data: "200"}).Success)
	bad := api.VerifyStatus(ctx, core.Request{Data: "201"})
	assert.False(t, bad.Success)
	assert.Contains(t, bad.Message, "Expected=201, Actual=200")

	checks := map[string]string{
		"id":           "7",
		"name":         "Amy",
		"active":       "true",
		"roles.1":      "qa",
		"address.city": "Oslo",
		"address":      `{"city":"Oslo"}`,
	}
	for path, want := range checks {
		r := api.VerifyJSON(ctx, core.Request{Target: path, Data: want})
		assert.True(t, r.Success, "%s: %s", path, r.Message)
	}

	mismatch := api.VerifyJSON(ctx, core.Request{Target: "name", Data: "Bob"})
	assert.False(t, mismatch.Success)
	missing := api.VerifyJSON(ctx, core.Request{Target: "nope", Data: "x"})
	assert.Contains(t, missing.Message, "path nope not found")
}

func TestAPI_PostWithPayload(t *testing.T) {
	srv := newTestServer(t)
	api := NewAPI(APIConfig{BaseURL: srv.URL, Headers: map[string]string{"X-Token": "abc"}})
	ctx := context.Background()

	res := api.Call(ctx, core.Request{Target: "/users", Data: `{"method":"POST","payload":{"name":"Zed"}}`})
	require.True(t, res.Success, res.Message)
	assert.True(t, api.VerifyStatus(ctx, core.Request{Data: "201"}).Success)

	stored := api.StoreResponse(ctx, core.Request{Target: "name"})
	require.True(t, stored.Success)
	require.NotNil(t, stored.StoreValue)
	assert.Equal(t, "Zed", *stored.StoreValue)

	token := api.StoreResponse(ctx, core.Request{Target: "token"})
	assert.Equal(t, "abc", *token.StoreValue)

	whole := api.StoreResponse(ctx, core.Request{})
	assert.JSONEq(t, `{"name":"Zed","token":"abc"}`, *whole.StoreValue)
}

func TestAPI_ErrorStatusIsNotACallFailure(t *testing.T) {
	srv := newTestServer(t)
	api := NewAPI(APIConfig{BaseURL: srv.URL})
	ctx := context.Background()

	res := api.Call(ctx, core.Request{Target: "/missing"})
	require.True(t, res.Success)
	assert.True(t, api.VerifyStatus(ctx, core.Request{Data: "404"}).Success)
}

func TestAPI_Failures(t *testing.T) {
	api := NewAPI(APIConfig{BaseURL: "http://127.0.0.1:1"})
	ctx := context.Background()

	assert.False(t, api.VerifyStatus(ctx, core.Request{}).Success)
	assert.False(t, api.StoreResponse(ctx, core.Request{Target: "x"}).Success)

	res := api.Call(ctx, core.Request{Target: "/x", Data: "TRACE"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "method TRACE not supported")

	res = api.Call(ctx, core.Request{Target: "/x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "API_CALL GET /x")
}

func TestRender(t *testing.T) {
	assert.Equal(t, "null", render(nil))
	assert.Equal(t, "1.5", render(1.5))
	assert.Equal(t, "100000000", render(float64(1e8)))
	assert.Equal(t, "false", render(false))
	assert.Equal(t, `["a","b"]`, render([]interface{}{"a", "b"}))
}
