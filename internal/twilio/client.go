// Package twilio implements the call-control gateway against the Twilio
// Voice REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	twiliosdk "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioopenapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/bargepoint/bargepoint/internal/bridge"
)

// Provider error codes this gateway cares about.
const (
	// errCodeNotFound is Twilio's "resource not found".
	errCodeNotFound = 20404
	// errCodeNotInProgress is "Unable to update record: Call is not in-progress".
	errCodeNotInProgress = 21220
)

// activeChildrenLimit bounds the child-leg listing. A two-party call has one
// child; anything beyond a handful means the account is doing something this
// service was never told about.
const activeChildrenLimit = 20

// defaultRequestTimeout bounds each provider round trip when the config does
// not say otherwise.
const defaultRequestTimeout = 10 * time.Second

// Config holds the Twilio account and endpoint settings.
type Config struct {
	AccountSID string
	AuthToken  string
	// BaseURL overrides the provider API host. Used to point the gateway at
	// an emulator or a test server; empty means api.twilio.com.
	BaseURL string
	// CallbackBaseURL is the public base under which this service's TwiML
	// and status webhook endpoints are reachable.
	CallbackBaseURL string
	// RequestTimeout bounds each provider round trip.
	RequestTimeout time.Duration
}

// Client implements bridge.Gateway against the Twilio REST API.
//
// The SDK does not take contexts, so each request is bounded by the HTTP
// timeout and the context is consulted before every provider round trip.
type Client struct {
	rest         *twiliosdk.RestClient
	callbackBase string
	logger       *slog.Logger
}

// New creates a Twilio-backed gateway.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	base := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  &http.Client{Timeout: timeout},
	}
	base.SetAccountSid(cfg.AccountSID)

	var httpClient twilioclient.BaseClient = base
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing provider base url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("provider base url %q must include scheme and host", cfg.BaseURL)
		}
		httpClient = &baseURLClient{Client: *base, base: u}
	}

	rest := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username:   cfg.AccountSID,
		Password:   cfg.AuthToken,
		AccountSid: cfg.AccountSID,
		Client:     httpClient,
	})

	return &Client{
		rest:         rest,
		callbackBase: trimBase(cfg.CallbackBaseURL),
		logger:       logger.With("subsystem", "twilio"),
	}, nil
}

// baseURLClient rewrites every request onto a fixed host so the SDK can talk
// to an emulator or a test server instead of api.twilio.com.
type baseURLClient struct {
	twilioclient.Client
	base *url.URL
}

func (c *baseURLClient) SendRequest(method string, rawURL string, data url.Values, headers map[string]interface{}, body ...byte) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = c.base.Scheme
	u.Host = c.base.Host
	return c.Client.SendRequest(method, u.String(), data, headers, body...)
}

// FetchCall returns the current state of one leg.
func (c *Client) FetchCall(ctx context.Context, id string) (bridge.CallRef, error) {
	if err := ctx.Err(); err != nil {
		return bridge.CallRef{}, err
	}
	call, err := c.rest.Api.FetchCall(id, &twilioopenapi.FetchCallParams{})
	if err != nil {
		return bridge.CallRef{}, c.mapError(err)
	}
	return toCallRef(call), nil
}

// ActiveChildren lists the in-progress legs spawned by the given parent.
// Twilio returns them newest first, so the order is flipped to oldest first.
func (c *Client) ActiveChildren(ctx context.Context, parentID string) ([]bridge.CallRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioopenapi.ListCallParams{}
	params.SetParentCallSid(parentID)
	params.SetStatus(string(bridge.StatusInProgress))
	params.SetLimit(activeChildrenLimit)

	calls, err := c.rest.Api.ListCall(params)
	if err != nil {
		return nil, c.mapError(err)
	}

	refs := make([]bridge.CallRef, 0, len(calls))
	for i := len(calls) - 1; i >= 0; i-- {
		refs = append(refs, toCallRef(&calls[i]))
	}
	return refs, nil
}

// RedirectToConference replaces the leg's running script with one that joins
// the named conference.
func (c *Client) RedirectToConference(ctx context.Context, callID, conference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioopenapi.UpdateCallParams{}
	params.SetUrl(c.joinURL(conference))
	params.SetMethod(http.MethodPost)

	if _, err := c.rest.Api.UpdateCall(callID, params); err != nil {
		return c.mapError(err)
	}

	c.logger.Debug("call redirected",
		"call_sid", callID,
		"conference", conference,
	)
	return nil
}

// DialIntoConference creates the invitee's outbound leg. The leg fetches the
// conference join script on answer and reports its lifecycle to the status
// webhook.
func (c *Client) DialIntoConference(ctx context.Context, conference string, p bridge.DialParams) (bridge.CallRef, error) {
	if err := ctx.Err(); err != nil {
		return bridge.CallRef{}, err
	}

	params := &twilioopenapi.CreateCallParams{}
	params.SetTo(p.To)
	params.SetFrom(p.From)
	params.SetUrl(c.joinURL(conference))
	params.SetMethod(http.MethodPost)
	params.SetStatusCallback(c.statusCallbackURL(conference))
	params.SetStatusCallbackMethod(http.MethodPost)
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	if p.RingTimeout > 0 {
		params.SetTimeout(p.RingTimeout)
	}

	call, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return bridge.CallRef{}, c.mapError(err)
	}

	ref := toCallRef(call)
	c.logger.Info("outbound leg created",
		"call_sid", ref.ID,
		"conference", conference,
		"to", p.To,
	)
	return ref, nil
}

// AddParticipant dials an address directly into the named conference. The
// participant hears no beep and their leaving does not end the conference.
func (c *Client) AddParticipant(ctx context.Context, conference string, p bridge.ParticipantParams) (bridge.CallRef, error) {
	if err := ctx.Err(); err != nil {
		return bridge.CallRef{}, err
	}

	params := &twilioopenapi.CreateParticipantParams{}
	params.SetTo(p.To)
	params.SetFrom(p.From)
	params.SetEarlyMedia(true)
	params.SetBeep("false")
	params.SetEndConferenceOnExit(false)

	participant, err := c.rest.Api.CreateParticipant(conference, params)
	if err != nil {
		return bridge.CallRef{}, c.mapError(err)
	}

	ref := bridge.CallRef{
		ID:   deref(participant.CallSid),
		From: p.From,
		To:   p.To,
	}
	c.logger.Info("participant added to conference",
		"call_sid", ref.ID,
		"conference", conference,
		"to", p.To,
	)
	return ref, nil
}

// joinURL is the TwiML endpoint that drops a leg into the named conference.
func (c *Client) joinURL(conference string) string {
	return c.callbackBase + TwiMLConferencePath + "/" + url.PathEscape(conference)
}

// statusCallbackURL is the webhook that receives leg lifecycle events, tagged
// with the conference the leg belongs to.
func (c *Client) statusCallbackURL(conference string) string {
	return c.callbackBase + StatusWebhookPath + "?conference=" + url.QueryEscape(conference)
}

// mapError translates provider failures into the gateway's error vocabulary.
func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		switch {
		case restErr.Code == errCodeNotFound || restErr.Status == http.StatusNotFound:
			return fmt.Errorf("%w: %s", bridge.ErrCallNotFound, restErr.Message)
		case restErr.Code == errCodeNotInProgress:
			return fmt.Errorf("%w: %s", bridge.ErrCallNotActive, restErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", bridge.ErrProviderTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", bridge.ErrProviderTimeout, err)
	}

	return err
}

func toCallRef(call *twilioopenapi.ApiV2010Call) bridge.CallRef {
	return bridge.CallRef{
		ID:        deref(call.Sid),
		ParentID:  deref(call.ParentCallSid),
		Direction: deref(call.Direction),
		Status:    bridge.CallStatus(deref(call.Status)),
		From:      deref(call.From),
		To:        deref(call.To),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimBase(base string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base
}
