package web

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
)

// RequestContext wraps fasthttp.RequestCtx for admin handlers
type RequestContext struct {
	RequestCtx *fasthttp.RequestCtx
	Params     map[string]string
	requestID  string
	values     map[string]interface{}
}

func newRequestContext(rc *fasthttp.RequestCtx, requestID string) *RequestContext {
	return &RequestContext{
		RequestCtx: rc,
		Params:     make(map[string]string),
		requestID:  requestID,
	}
}

// JSON writes a JSON response
func (c *RequestContext) JSON(statusCode int, data interface{}) error {
	if statusCode < 100 || statusCode > 599 {
		return fmt.Errorf("invalid status code: %d", statusCode)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("json encode error: %w", err)
	}
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("application/json")
	c.RequestCtx.SetBody(body)
	return nil
}

// Text writes text response
func (c *RequestContext) Text(statusCode int, text string) error {
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("text/plain; charset=utf-8")
	c.RequestCtx.SetBodyString(text)
	return nil
}

// Param returns path parameter value
func (c *RequestContext) Param(key string) string {
	return c.Params[key]
}

// Query returns query parameter value
func (c *RequestContext) Query(key string) string {
	return string(c.RequestCtx.QueryArgs().Peek(key))
}

// Method returns HTTP method
func (c *RequestContext) Method() []byte {
	return c.RequestCtx.Method()
}

// Path returns request path
func (c *RequestContext) Path() []byte {
	return c.RequestCtx.Path()
}

// Error writes error response
func (c *RequestContext) Error(msg string, statusCode int) {
	c.RequestCtx.Error(msg, statusCode)
}

// RequestID returns the request ID for this request
func (c *RequestContext) RequestID() string {
	return c.requestID
}

// Set stores a request-scoped value, such as verified token claims.
func (c *RequestContext) Set(key string, v interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[key] = v
}

// Get returns a value stored with Set
func (c *RequestContext) Get(key string) interface{} {
	return c.values[key]
}
