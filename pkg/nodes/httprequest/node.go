package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/nodeconfig"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/step"
	"github.com/nodeflow/nodeflow/pkg/template"
)

const nodeName = "HTTP Request"

// Config defines the configuration for HTTP request nodes.
type Config struct {
	Endpoint     string `json:"endpoint"     validate:"required"`
	Method       string `json:"method"`
	Body         string `json:"body"`
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	Timeout      int    `json:"timeout"      validate:"omitempty,min=1,max=300"`
}

// Response is what the node stores under its variable name, as httpResponse.
type Response struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Data       any    `json:"data"`
}

func (e *Executor) Execute(ctx context.Context, req protocol.Request) (models.Context, error) {
	var cfg Config
	if err := nodeconfig.Decode(nodeName, req.Config, &cfg); err != nil {
		return nil, err
	}

	method := strings.ToUpper(cfg.Method)

	switch method {
	case "":
		method = http.MethodGet
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, protocol.Configuration("%s node: method must be one of GET, POST, PUT, PATCH, DELETE", nodeName)
	}

	endpoint, err := template.Render(cfg.Endpoint, req.Context)
	if err != nil {
		return nil, protocol.Configuration("%s node: endpoint: %v", nodeName, err)
	}

	if err := checkEndpoint(endpoint); err != nil {
		return nil, err
	}

	var body string

	if hasBody(method) && cfg.Body != "" {
		body, err = template.Render(cfg.Body, req.Context)
		if err != nil {
			return nil, protocol.Configuration("%s node: body: %v", nodeName, err)
		}

		if !json.Valid([]byte(body)) {
			return nil, protocol.Configuration("%s node: body is not valid JSON after rendering", nodeName)
		}
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	response, err := step.Do(ctx, req.Step, "http-request", func(ctx context.Context) (Response, error) {
		return e.perform(ctx, method, endpoint, body, timeout)
	})
	if err != nil {
		return nil, err
	}

	return protocol.WithOutput(req.Context, cfg.VariableName, map[string]any{
		"httpResponse": response,
	}), nil
}

// checkEndpoint accepts only absolute http and https URLs.
func checkEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return protocol.Configuration("%s node: endpoint %q is not an http or https URL", nodeName, endpoint)
	}

	return nil
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// perform executes a single HTTP request. Any received response is a result, whatever
// its status code; only failing to get one is an error.
func (e *Executor) perform(ctx context.Context, method, endpoint, body string, timeout time.Duration) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return Response{}, protocol.Configuration("%s node: invalid endpoint %q: %v", nodeName, endpoint, err)
	}

	if body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Response{}, protocol.Upstream(fmt.Errorf("request failed: %w", err), true)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, protocol.Upstream(fmt.Errorf("failed to read response: %w", err), true)
	}

	return Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Data:       decodeBody(resp.Header.Get("Content-Type"), raw),
	}, nil
}

// decodeBody parses JSON bodies and returns everything else as text. A body that claims
// to be JSON but does not parse is kept as text.
func decodeBody(contentType string, raw []byte) any {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		return string(raw)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}

	return data
}
