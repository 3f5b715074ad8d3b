// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/netutil"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
)

// requestTimeout bounds every request. Requests are not cancellable
// mid-flight by the user; this timeout is the only thing that
// terminates a hung one.
const requestTimeout = 120 * time.Second

// Sink receives durable failure records. The store engine's log sink
// satisfies it. Logging is best-effort: the channel ignores the
// return value and never fails a request over a sink failure.
type Sink interface {
	Log(code result.Code, message string, callStack []string) bool
}

// ChannelConfig wires one channel instance.
type ChannelConfig struct {
	// BaseURL is the service root; request paths are resolved
	// against it.
	BaseURL string

	// Codec wraps outbound bodies and unwraps responses. Use a
	// BootstrapCodec or a SessionCodec.
	Codec Codec

	// Sink, when set, durably records every failure before it is
	// returned to the caller.
	Sink Sink

	// RequestsPerSecond throttles outbound requests. Zero means no
	// throttle.
	RequestsPerSecond float64

	// HTTPClient overrides the default client; mainly for tests. The
	// channel installs its own timeout either way.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Channel posts encrypted envelopes to one service. Two instances
// exist in a normal process: the bootstrap channel and the
// authenticated API channel, differing only in codec and base URL.
type Channel struct {
	baseURL *url.URL
	codec   Codec
	sink    Sink
	limiter *rate.Limiter
	client  *http.Client
	logger  *slog.Logger
}

// NewChannel validates the base URL and returns a channel.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport: base URL %q has no scheme or host", cfg.BaseURL)
	}

	// The channel owns its client's timeout; a caller-supplied client
	// is copied so the caller's is left untouched.
	client := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		client = &copied
	}
	client.Timeout = requestTimeout

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Channel{
		baseURL: base,
		codec:   cfg.Codec,
		sink:    cfg.Sink,
		limiter: limiter,
		client:  client,
		logger:  logger,
	}, nil
}

// Post encrypts body through the channel's codec, sends it to path,
// and returns the decrypted response body.
//
// Status policy: 2xx responses are decrypted and returned; 401 and
// 403 are handled as session rejections; 400 is an invalid request;
// every other status is a transport failure carrying the status code
// as a diagnostic. All failures except the local no-session
// short-circuit are recorded through the sink before returning.
func (c *Channel) Post(ctx context.Context, path string, body map[string]any) result.Result[map[string]any] {
	prepared := c.codec.PrepareOutbound(body)
	if !prepared.OK {
		if prepared.InvalidSession {
			// Local short-circuit: no network call, nothing to log.
			return result.ErrInvalidSession[map[string]any]()
		}
		return c.fail(result.Propagate[map[string]any](prepared, "transport.Post"))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(result.WrapErr[map[string]any](result.CodeUnknown, err))
		}
	}

	encoded, err := json.Marshal(prepared.Value)
	if err != nil {
		return c.fail(result.WrapErr[map[string]any](result.CodeUnknown, err))
	}

	requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	request, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.resolve(path), bytes.NewReader(encoded))
	if err != nil {
		return c.fail(result.WrapErr[map[string]any](result.CodeUnknown, err))
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return c.fail(result.Errf[map[string]any](result.CodeUnknown,
			"posting to %s: %v", path, err))
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		// Fall through to decryption below.
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return c.fail(result.ErrInvalidSession[map[string]any]())
	case response.StatusCode == http.StatusBadRequest:
		return c.fail(result.Errf[map[string]any](result.CodeInvalidRequest,
			"posting to %s: status %d", path, response.StatusCode))
	default:
		return c.fail(result.Errf[map[string]any](result.CodeUnknown,
			"posting to %s: unexpected status %d", path, response.StatusCode))
	}

	raw, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return c.fail(result.WrapErr[map[string]any](result.CodeUnknown, err))
	}

	parsed := c.codec.ParseInbound(raw)
	if !parsed.OK {
		return c.fail(parsed.WithBreadcrumb("transport.Post"))
	}
	return parsed
}

// fail records the failure through the sink, best-effort, and returns
// it unchanged.
func (c *Channel) fail(failure result.Result[map[string]any]) result.Result[map[string]any] {
	if c.sink != nil && !failure.InvalidSession {
		if ok := c.sink.Log(failure.Code, failure.Message, failure.CallStack); !ok {
			c.logger.Warn("transport: failure not durably logged",
				"code", int(failure.Code))
		}
	}
	return failure
}

func (c *Channel) resolve(path string) string {
	return strings.TrimSuffix(c.baseURL.String(), "/") + "/" + strings.TrimPrefix(path, "/")
}
