// Package fetch provides an HTTP-backed injector-style Node for pulling a
// dataset sample or manifest into a plan. It is a concrete, non-core
// collaborator: dataset loading is orthogonal plumbing, not part of the
// planning engine itself.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cvebench/flowengine/engine"
)

// Response is the result of one HTTP fetch: status, headers, and body.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// Node is an engine.Node with a single mode, requiring nothing and
// providing the Response fetched from a configured URL. It is
// "injector-style": like engine.Injector, it requires nothing, but
// unlike Injector its value is produced lazily by the worker (a live
// HTTP round trip) rather than handed in up front.
type Node struct {
	client       *http.Client
	method       string
	url          string
	headers      map[string]string
	body         string
	resourceName engine.ResourceName
}

// Option configures a Node.
type Option func(*Node)

// WithMethod sets the HTTP method (default GET).
func WithMethod(method string) Option {
	return func(n *Node) { n.method = strings.ToUpper(method) }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(n *Node) {
		if n.headers == nil {
			n.headers = make(map[string]string)
		}
		n.headers[key] = value
	}
}

// WithBody sets a request body (used for POST).
func WithBody(body string) Option {
	return func(n *Node) { n.body = body }
}

// WithTimeout bounds the HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(n *Node) { n.client.Timeout = d }
}

// New returns a fetch Node that provides resourceName by making an HTTP
// request to url when its worker runs.
func New(url string, resourceName engine.ResourceName, opts ...Option) *Node {
	n := &Node{
		client:       &http.Client{},
		method:       http.MethodGet,
		url:          url,
		resourceName: resourceName,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// StaticContracts implements engine.StaticContractor: one mode,
// requiring nothing, providing resourceName.
func (n *Node) StaticContracts() []engine.Contract {
	return []engine.Contract{{Provides: []engine.ResourceName{n.resourceName}}}
}

// GetContract implements engine.Node.
func (n *Node) GetContract(mode engine.ModeID) (engine.Contract, bool) {
	if mode != 0 {
		return engine.Contract{}, false
	}
	return n.StaticContracts()[0], true
}

// Setup implements engine.Node. The worker performs the HTTP round trip
// each time it is invoked; outputMask[0] == false skips the request
// entirely since nothing downstream needs the result.
func (n *Node) Setup(mode engine.ModeID, _ []engine.ResourceType, outputMask []bool) (engine.Worker, []engine.ResourceType, error) {
	if mode != 0 {
		return nil, nil, fmt.Errorf("fetch: unknown mode %d", mode)
	}

	worker := func([]any) ([]any, error) {
		if len(outputMask) > 0 && !outputMask[0] {
			return []any{nil}, nil
		}

		var body io.Reader
		if n.body != "" {
			body = bytes.NewBufferString(n.body)
		}
		req, err := http.NewRequestWithContext(context.Background(), n.method, n.url, body)
		if err != nil {
			return nil, fmt.Errorf("fetch: building request: %w", err)
		}
		for k, v := range n.headers {
			req.Header.Set(k, v)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch: request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch: reading response body: %w", err)
		}

		return []any{Response{
			StatusCode: resp.StatusCode,
			Headers:    map[string][]string(resp.Header),
			Body:       respBody,
		}}, nil
	}

	return worker, []engine.ResourceType{{Kind: "fetch.response"}}, nil
}
