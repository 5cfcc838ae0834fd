package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAlreadyResent is returned by Exchange.Resend after the one permitted resend.
var ErrAlreadyResent = errors.New("httpclient: exchange already resent")

// Exchange is the mutable state one request carries through a Pipeline.
type Exchange struct {
	// Request is the request sent (or about to be sent) to the base transport.
	Request *http.Request
	// Response and Err are the outcome of the last send.
	Response *http.Response
	Err      error

	base   http.RoundTripper
	resent bool
}

// Resend sends req through the base transport in place of the current
// outcome. It may be used once per exchange; the resend outcome is final.
func (e *Exchange) Resend(req *http.Request) error {
	if e.resent {
		return ErrAlreadyResent
	}
	e.resent = true
	e.Request = req
	e.Response, e.Err = e.base.RoundTrip(req)
	return nil
}

// Resent reports whether Resend has been used.
func (e *Exchange) Resent() bool {
	return e.resent
}

// Stage is a named step of a Pipeline. Before runs ahead of the send and may
// mutate the request; a Before error aborts the exchange. After runs on the
// outcome and may replace it through Exchange.Resend.
type Stage struct {
	Name   string
	Before func(*Exchange) error
	After  func(*Exchange) error
}

// Pipeline runs an ordered list of stages around a base transport.
type Pipeline struct {
	base   http.RoundTripper
	stages []Stage
}

// NewPipeline creates a pipeline sending through base (http.DefaultTransport if nil).
func NewPipeline(base http.RoundTripper, stages ...Stage) *Pipeline {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Pipeline{base: base, stages: stages}
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run sends req through every stage. Before hooks run in order, then the
// request is sent, then After hooks run in order on the outcome.
func (p *Pipeline) Run(req *http.Request) (*http.Response, error) {
	ex := &Exchange{Request: req, base: p.base}

	for _, s := range p.stages {
		if s.Before == nil {
			continue
		}
		if err := s.Before(ex); err != nil {
			closeRequestBody(ex.Request)
			return nil, fmt.Errorf("httpclient: %s: %w", s.Name, err)
		}
	}

	ex.Response, ex.Err = p.base.RoundTrip(ex.Request)

	for _, s := range p.stages {
		if s.After == nil {
			continue
		}
		if err := s.After(ex); err != nil {
			if ex.Response != nil {
				_ = ex.Response.Body.Close()
			}
			return nil, fmt.Errorf("httpclient: %s: %w", s.Name, err)
		}
	}

	return ex.Response, ex.Err
}

// closeRequestBody honours the RoundTripper contract of closing the body
// on every path, including requests that are never sent.
func closeRequestBody(req *http.Request) {
	if req != nil && req.Body != nil {
		_ = req.Body.Close()
	}
}
