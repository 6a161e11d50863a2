// Package keywords provides the bundled keyword handlers: HTTP API
// keywords, common keywords and a dry-run UI driver.
package keywords

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/logger"
)

// APIConfig configures the HTTP client of the API keywords.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Headers map[string]string
	Logger  *slog.Logger
}

// API implements API_CALL, VERIFY_STATUS, STORE_RESPONSE and VERIFY_JSON.
// It remembers the last response, so one API belongs to one test case.
type API struct {
	client *resty.Client
	last   *resty.Response
	body   *gabs.Container
}

// NewAPI creates the API keywords.
func NewAPI(cfg APIConfig) *API {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetRetryCount(cfg.Retries).
		SetHeaders(cfg.Headers).
		SetLogger(logger.Printf{L: logger.OrDiscard(cfg.Logger)})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &API{client: client}
}

// callSpec is the JSON form of an API_CALL DATA cell.
type callSpec struct {
	Method   string            `json:"method"`
	Endpoint string            `json:"endpoint"`
	Payload  interface{}       `json:"payload"`
	Headers  map[string]string `json:"headers"`
}

// parseCall reads TARGET as the endpoint and DATA as either a JSON call
// spec or "METHOD [endpoint]". The method defaults to GET.
func parseCall(target, data string) callSpec {
	spec := callSpec{Method: http.MethodGet, Endpoint: strings.TrimSpace(target)}
	data = strings.TrimSpace(data)
	if data == "" {
		return spec
	}

	var parsed callSpec
	if strings.HasPrefix(data, "{") && json.Unmarshal([]byte(data), &parsed) == nil {
		if parsed.Method != "" {
			spec.Method = parsed.Method
		}
		if parsed.Endpoint != "" {
			spec.Endpoint = parsed.Endpoint
		}
		spec.Payload = parsed.Payload
		spec.Headers = parsed.Headers
		spec.Method = strings.ToUpper(spec.Method)
		return spec
	}

	parts := strings.Fields(data)
	spec.Method = strings.ToUpper(parts[0])
	if len(parts) > 1 {
		spec.Endpoint = parts[1]
	}
	return spec
}

// Call executes API_CALL.
func (a *API) Call(ctx context.Context, req core.Request) core.Result {
	start := time.Now()
	spec := parseCall(req.Target, req.Data)

	switch spec.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead:
	default:
		return core.Failure(fmt.Errorf("API_CALL: method %s not supported", spec.Method))
	}

	r := a.client.R().SetContext(ctx).SetHeaders(spec.Headers)
	if spec.Payload != nil && spec.Method != http.MethodGet && spec.Method != http.MethodHead {
		r.SetBody(spec.Payload)
	}

	resp, err := r.Execute(spec.Method, spec.Endpoint)
	if err != nil {
		return core.Failure(fmt.Errorf("API_CALL %s %s: %w", spec.Method, spec.Endpoint, err))
	}

	a.last = resp
	a.body = gabs.New()
	if parsed, err := gabs.ParseJSON(resp.Body()); err == nil {
		a.body = parsed
	}

	return core.Result{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("%s %s -> %d", spec.Method, spec.Endpoint, resp.StatusCode()),
		Data:     map[string]interface{}{"status": resp.StatusCode(), "url": resp.Request.URL},
		Attachments: []core.Attachment{
			core.NewResponseAttachment("", resp.Body()),
		},
	}
}

// VerifyStatus executes VERIFY_STATUS. DATA is the expected code, 200 when
// blank.
func (a *API) VerifyStatus(_ context.Context, req core.Request) core.Result {
	if a.last == nil {
		return core.Failure(fmt.Errorf("no API response available for VERIFY_STATUS"))
	}
	expected := http.StatusOK
	if s := strings.TrimSpace(req.Data); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return core.Failure(fmt.Errorf("VERIFY_STATUS: invalid status %q", req.Data))
		}
		expected = n
	}
	if got := a.last.StatusCode(); got != expected {
		return core.Failure(fmt.Errorf("status mismatch. Expected=%d, Actual=%d", expected, got))
	}
	return core.Success(fmt.Sprintf("status %d", expected))
}

// StoreResponse executes STORE_RESPONSE. TARGET is an optional dotted path
// into the last JSON body; the value found becomes the store value.
func (a *API) StoreResponse(_ context.Context, req core.Request) core.Result {
	value, err := a.lookup(req.Target)
	if err != nil {
		return core.Failure(err)
	}
	return core.SuccessWithValue("stored response", value)
}

// VerifyJSON executes VERIFY_JSON: the value at TARGET must render equal to
// DATA.
func (a *API) VerifyJSON(_ context.Context, req core.Request) core.Result {
	value, err := a.lookup(req.Target)
	if err != nil {
		return core.Failure(err)
	}
	if value != req.Data {
		return core.Failure(fmt.Errorf("json mismatch at %s. Expected=%s, Actual=%s", req.Target, req.Data, value))
	}
	return core.Success(fmt.Sprintf("%s = %s", req.Target, value))
}

func (a *API) lookup(path string) (string, error) {
	if a.last == nil {
		return "", fmt.Errorf("no API response available")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return a.body.String(), nil
	}
	if !a.body.ExistsP(path) {
		return "", fmt.Errorf("path %s not found in response", path)
	}
	return render(a.body.Path(path).Data()), nil
}

// render formats a JSON value: strings raw, numbers without exponent,
// objects and arrays as compact JSON.
func render(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return gabs.Wrap(t).String()
	}
}
