// Package http provides the router seam, server and JSON response helpers
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/logger"
	pnet "poshub/internal/platform/net"
	"poshub/internal/platform/net/http/bind"
)

// Envelope is the standard response body
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// JSON writes v as application/json with status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Named("http").Warn().Err(err).Msg("write response failed")
	}
}

// ErrorEnvelope maps err to its status and envelope
func ErrorEnvelope(err error, reqID string) (int, Envelope) {
	status := perr.HTTPStatus(err)
	wr := perr.WireFrom(err)
	return status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		Code:       wr.Code,
		Error:      wr.Message,
		Field:      wr.Field,
		RequestID:  reqID,
	}
}

// RespondError writes the error envelope for err. 5xx causes are logged, never sent
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	respondError(w, r, err, nil)
}

func respondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error, data any) {
	status, env := ErrorEnvelope(err, pnet.RequestID(r.Context()))
	env.Data = data
	if status >= stdhttp.StatusInternalServerError {
		logger.C(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	}
	JSON(w, status, env)
}

// Response is a return-style handler result
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header
	// Raw writes Body as-is instead of inside an Envelope
	Raw bool
	// Partial rides along in the error envelope when Body is an error
	Partial any
}

// Handle adapts a Response-returning function to a Handler
func Handle(h func(r *stdhttp.Request) Response) Handler {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) { h(r).write(w, r) }
}

func (resp Response) write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if err, ok := resp.Body.(error); ok && err != nil {
		respondError(w, r, err, resp.Partial)
		return
	}
	status := resp.Status
	if status == 0 {
		status = stdhttp.StatusOK
	}
	if status == stdhttp.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if resp.Raw {
		JSON(w, status, resp.Body)
		return
	}
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		RequestID:  pnet.RequestID(r.Context()),
		Data:       resp.Body,
	})
}

// OK returns a 200 response
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Accepted returns a 202 response, for work handed to an asynchronous consumer
func Accepted(data any) Response { return Response{Status: stdhttp.StatusAccepted, Body: data} }

// Raw returns a response written without the envelope
func Raw(status int, body any) Response { return Response{Status: status, Body: body, Raw: true} }

// Error returns a response mapped from err
func Error(err error) Response { return Response{Body: err} }

// PartialError is Error with the work that completed before err, sent as the envelope data
func PartialError(err error, done any) Response { return Response{Body: err, Partial: done} }

// JSONHandler decodes and validates T, then calls fn. A Response result is written as-is;
// anything else is wrapped in OK
func JSONHandler[T any](fn func(*stdhttp.Request, T) (any, error)) Handler {
	return Handle(func(r *stdhttp.Request) Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return Error(err)
		}
		out, err := fn(r, in)
		if err != nil {
			return Error(err)
		}
		if resp, ok := out.(Response); ok {
			return resp
		}
		return OK(out)
	})
}

// PostJSON mounts a JSON handler under POST
func PostJSON[T any](r Router, path string, h func(*stdhttp.Request, T) (any, error)) {
	r.Post(path, JSONHandler(h))
}
