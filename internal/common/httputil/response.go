package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/valyala/fasthttp"
)

// MaxJSONBody caps request bodies accepted by DecodeJSON
const MaxJSONBody = 64 << 10

// APIResponse is the unified response format for all APIs
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSONResponse sends a JSON response with the unified format
func JSONResponse(ctx *fasthttp.RequestCtx, success bool, message string, data any, statusCode int) {
	body, err := json.Marshal(APIResponse{
		Success: success,
		Message: message,
		Data:    data,
	})
	if err != nil {
		body = []byte(`{"success":false,"message":"failed to encode response"}`)
		statusCode = fasthttp.StatusInternalServerError
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// JSONError is a convenience wrapper for error responses
func JSONError(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	JSONResponse(ctx, false, message, nil, statusCode)
}

// JSONData is a convenience wrapper for success responses with data
func JSONData(ctx *fasthttp.RequestCtx, data any, statusCode int) {
	JSONResponse(ctx, true, "", data, statusCode)
}

// NoContent answers 204 with an empty body
func NoContent(ctx *fasthttp.RequestCtx) {
	ctx.ResetBody()
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
// An empty body leaves v untouched when allowEmpty is set.
func DecodeJSON(ctx *fasthttp.RequestCtx, v any, allowEmpty bool) error {
	body := ctx.PostBody()
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("request body is required")
	}
	if len(body) > MaxJSONBody {
		return fmt.Errorf("request body exceeds %d bytes", MaxJSONBody)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	// anything but whitespace after the value, including a stray '}' or ']'
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: trailing data")
	}
	return nil
}
