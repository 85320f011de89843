package chat_widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxBodyBytes caps how much of a reply is read.
const maxBodyBytes = 4 << 20

// Client sends questions to the chat backend.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	chain    *MiddlewareChain
	log      zerolog.Logger
}

func NewClient(o Options) *Client {
	log := o.logger().With().Str("component", "client").Logger()
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	chain := NewMiddlewareChain()
	chain.Add(RequestIDMiddleware())
	chain.Add(LoggingMiddleware(log))
	for _, m := range o.Middlewares {
		chain.Add(m)
	}

	return &Client{
		endpoint: o.endpoint(),
		http:     hc,
		timeout:  o.RequestTimeout,
		chain:    chain,
		log:      log,
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts {token, question} and classifies the reply. It never retries.
func (c *Client) Send(ctx context.Context, token, question string) Outcome {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	rctx := &RequestContext{
		Endpoint:  c.endpoint,
		Request:   ChatRequest{Token: token, Question: question},
		Header:    make(http.Header),
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	return c.chain.Execute(ctx, rctx, func(ctx context.Context, rctx *RequestContext) Outcome {
		return Request(ctx, c.http, rctx.Endpoint, rctx.Request, rctx.Header)
	})
}

// Request performs a single JSON POST of body to url and turns the reply into
// an Outcome: 2xx decodes into ChatResponse, any other status extracts the
// detail of an ErrorResponse, and everything that keeps a usable reply from
// arriving is a transport error.
func Request(ctx context.Context, hc *http.Client, url string, body ChatRequest, header http.Header) Outcome {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return TransportError(fmt.Errorf("failed to marshal request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return TransportError(fmt.Errorf("failed to create request: %w", err))
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return TransportError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return TransportError(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return HTTPError(resp.StatusCode, extractDetail(bodyBytes))
	}

	var result ChatResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return TransportError(fmt.Errorf("failed to parse JSON: %w, response: %s", err, truncate(string(bodyBytes), 200)))
	}
	var required struct {
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(bodyBytes, &required); err != nil || required.Response == nil {
		return TransportError(fmt.Errorf("response field missing, response: %s", truncate(string(bodyBytes), 200)))
	}
	return Success(result)
}

// extractDetail pulls a readable message out of an error body. The detail is
// a string or, for validation failures, a list of {"msg": ...}. Any other
// non-empty value is shown as its JSON text.
func extractDetail(body []byte) string {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	raw := strings.TrimSpace(string(er.Detail))
	switch raw {
	case "", "null", "false", "0", `""`, "[]", "{}":
		return ""
	}

	var s string
	if err := json.Unmarshal(er.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(er.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, er.Detail); err != nil {
		return raw
	}
	return compact.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
