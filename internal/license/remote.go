package license

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	perrors "github.com/rcourtman/pulse-compliance/internal/errors"
	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

const (
	DefaultVerifyTimeout = 10 * time.Second
	defaultRetryCount    = 2
	defaultRetryWait     = 500 * time.Millisecond
	opVerify             = "verify_license"
)

type verifyRequest struct {
	LicenseKey string `json:"license_key"`
	InstanceID string `json:"instance_id"`
}

type verifyResponse struct {
	Status        string `json:"status"`
	SiteActivated bool   `json:"site_activated"`
}

// RemoteVerifier asks an activation service about the configured key.
type RemoteVerifier struct {
	client     *resty.Client
	endpoint   string
	host       string
	keys       KeySource
	instanceID string
}

// RemoteOption customises a RemoteVerifier.
type RemoteOption func(*RemoteVerifier)

// WithHTTPTransport replaces the DNS-caching transport.
func WithHTTPTransport(rt http.RoundTripper) RemoteOption {
	return func(v *RemoteVerifier) {
		v.client.SetTransport(rt)
	}
}

// WithRetry sets the retry count and base wait.
func WithRetry(count int, wait time.Duration) RemoteOption {
	return func(v *RemoteVerifier) {
		v.client.SetRetryCount(count).SetRetryWaitTime(wait)
	}
}

// NewRemoteVerifier builds a verifier posting to endpoint.
func NewRemoteVerifier(endpoint string, keys KeySource, instanceID string, timeout time.Duration, opts ...RemoteOption) (*RemoteVerifier, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid license verify URL %q", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetTransport(newTransport()).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "pulse-compliance").
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(defaultRetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return perrors.IsRetryableError(classifyResponse(r, parsed.Host))
		})

	v := &RemoteVerifier{
		client:     client,
		endpoint:   parsed.String(),
		host:       parsed.Host,
		keys:       keys,
		instanceID: strings.TrimSpace(instanceID),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Check implements compliance.Verifier. Any failure yields an unknown status and
// the error.
func (v *RemoteVerifier) Check(ctx context.Context) (compliance.VerifierResult, error) {
	key, err := v.keys.Key(ctx)
	if err != nil {
		return compliance.UnknownResult, fmt.Errorf("read license key: %w", err)
	}
	if key == "" {
		return compliance.VerifierResult{Status: compliance.StatusInvalid}, nil
	}

	var body verifyResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(verifyRequest{LicenseKey: key, InstanceID: v.instanceID}).
		SetResult(&body).
		Post(v.endpoint)
	if err != nil {
		return compliance.UnknownResult, perrors.WrapConnectionError(opVerify, v.host, err)
	}
	if err := classifyResponse(resp, v.host); err != nil {
		return compliance.UnknownResult, err
	}

	status := compliance.Status(strings.ToLower(strings.TrimSpace(body.Status)))
	if status == compliance.StatusUnknown {
		return compliance.UnknownResult, nil
	}
	if !status.Known() {
		return compliance.UnknownResult, perrors.WrapDecodeError(opVerify, v.host,
			fmt.Errorf("unrecognised status %q", body.Status))
	}

	log.Debug().
		Str("status", string(status)).
		Bool("siteActivated", body.SiteActivated).
		Msg("License verified remotely")
	return compliance.VerifierResult{Status: status, SiteActivated: body.SiteActivated}, nil
}

func classifyResponse(resp *resty.Response, host string) error {
	if resp == nil {
		return perrors.WrapConnectionError(opVerify, host, fmt.Errorf("no response"))
	}
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return perrors.WrapAPIError(opVerify, host, fmt.Errorf("unexpected status %d", code), code)
}
