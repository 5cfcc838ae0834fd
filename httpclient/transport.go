package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/internal/logging"
)

// Stage names of the default pipeline, in execution order.
const (
	StageStaticHeaders = "static-headers"
	StageAuthorize     = "authorize"
	StageRefresh       = "refresh"
)

// errNotReplayable is reported when a request body cannot be rewound for a resend.
var errNotReplayable = errors.New("httpclient: request body cannot be replayed")

// Transport is an http.RoundTripper that authenticates outgoing requests.
//
// Each request runs through a Pipeline of three stages: static headers are
// added where the request lacks them, the Authenticator sets its credential
// headers, and a 401 on an OAuth2 request triggers one token refresh and one
// resend. The caller's request is never modified.
type Transport struct {
	auth     *auth.Authenticator
	headers  map[string]string
	logger   logrus.FieldLogger
	pipeline *Pipeline
}

// TransportOption is a functional option for configuring Transport.
type TransportOption func(*Transport)

// WithStaticHeaders sets headers added to every request that does not carry them.
func WithStaticHeaders(headers map[string]string) TransportOption {
	return func(t *Transport) {
		t.headers = headers
	}
}

// WithTransportLogger sets a logger for refresh events.
func WithTransportLogger(logger logrus.FieldLogger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport creates a Transport applying a to requests sent through base.
// The base transport defaults to http.DefaultTransport if not specified.
func NewTransport(a *auth.Authenticator, base http.RoundTripper, opts ...TransportOption) *Transport {
	t := &Transport{
		auth:   a,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.pipeline = NewPipeline(base,
		staticHeadersStage(t.headers),
		authorizeStage(a),
		refreshStage(a, t.logger),
	)
	return t
}

// Pipeline returns the stage pipeline requests run through.
func (t *Transport) Pipeline() *Pipeline {
	return t.pipeline
}

// RoundTrip implements http.RoundTripper.
// The request context bounds how long the request waits for credentials;
// a token exchange shared with other requests runs on its own timeout
// (see auth.WithExchangeTimeout) and is not cancelled with this request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.auth == nil {
		closeRequestBody(req)
		return nil, fmt.Errorf("httpclient: Authenticator is nil")
	}

	out := req.Clone(req.Context())
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if t.auth.CanRefresh() {
		if err := bufferBody(out); err != nil {
			return nil, fmt.Errorf("httpclient: buffer request body: %w", err)
		}
	}

	return t.pipeline.Run(out)
}

func staticHeadersStage(headers map[string]string) Stage {
	return Stage{
		Name: StageStaticHeaders,
		Before: func(ex *Exchange) error {
			for k, v := range headers {
				if ex.Request.Header.Get(k) == "" {
					ex.Request.Header.Set(k, v)
				}
			}
			return nil
		},
	}
}

func authorizeStage(a *auth.Authenticator) Stage {
	return Stage{
		Name: StageAuthorize,
		Before: func(ex *Exchange) error {
			return a.Authorize(ex.Request.Context(), ex.Request.Header)
		},
	}
}

// refreshStage resends a request rejected with 401 once, after a token refresh.
// When no refresh is possible the original response is kept.
func refreshStage(a *auth.Authenticator, logger logrus.FieldLogger) Stage {
	return Stage{
		Name: StageRefresh,
		After: func(ex *Exchange) error {
			if ex.Err != nil || ex.Response == nil || ex.Response.StatusCode != http.StatusUnauthorized {
				return nil
			}
			if ex.Resent() || !a.CanRefresh() {
				return nil
			}

			ctx := ex.Request.Context()
			log := logger.WithField("url", ex.Request.URL.Redacted())

			token, err := a.Refresh(ctx, auth.BearerToken(ex.Request.Header))
			if err != nil {
				log.WithError(err).Debug("Not retrying rejected request")
				return nil
			}

			retry, err := rewind(ex.Request)
			if err != nil {
				log.WithError(err).Warn("Not retrying rejected request")
				return nil
			}
			retry.Header.Set("Authorization", "Bearer "+token)

			discard(ex.Response)
			log.Debug("Resending request with refreshed token")
			return ex.Resend(retry)
		},
	}
}

// bufferBody makes the body of req replayable when the caller gave no GetBody.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errNotReplayable
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

// discard drains and closes a response that is being replaced.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
