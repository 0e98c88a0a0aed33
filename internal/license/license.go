// Package license answers "is this installation licensed?" for the compliance
// controller. Keys are Ed25519-signed JWTs that can be checked offline, or sent
// to a remote activation service.
package license

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

var (
	ErrNoLicense        = errors.New("no license key configured")
	ErrMalformedLicense = errors.New("malformed license key")
	ErrNoPublicKey      = errors.New("no public key configured for validation")
)

// Claims are the JWT claims carried by a Pulse license key.
type Claims struct {
	LicenseID string   `json:"lid"`
	Email     string   `json:"email"`
	Tier      string   `json:"tier"`
	Sites     []string `json:"sites,omitempty"`
	jwt.RegisteredClaims
}

// ActivatedFor reports whether instanceID is one of the licence's activated sites.
func (c *Claims) ActivatedFor(instanceID string) bool {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return false
	}
	return slices.Contains(c.Sites, instanceID)
}

// ParseKey validates licenseKey against publicKey at time now.
func ParseKey(licenseKey string, publicKey ed25519.PublicKey, now time.Time) (*Claims, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	if licenseKey == "" {
		return nil, ErrNoLicense
	}
	if len(publicKey) == 0 {
		return nil, ErrNoPublicKey
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(licenseKey, claims, func(*jwt.Token) (any, error) {
		return publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return claims, err
	}

	if claims.LicenseID == "" {
		return claims, fmt.Errorf("%w: missing license ID", ErrMalformedLicense)
	}
	if claims.Email == "" {
		return claims, fmt.Errorf("%w: missing email", ErrMalformedLicense)
	}
	return claims, nil
}

// StatusFor maps a parse outcome onto the verifier status vocabulary.
func StatusFor(err error) compliance.Status {
	switch {
	case err == nil:
		return compliance.StatusValid
	case errors.Is(err, ErrNoPublicKey):
		return compliance.StatusUnknown
	case errors.Is(err, jwt.ErrTokenExpired):
		return compliance.StatusExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return compliance.StatusPending
	default:
		return compliance.StatusInvalid
	}
}

// OfflineVerifier checks the configured key locally.
type OfflineVerifier struct {
	keys       KeySource
	publicKey  ed25519.PublicKey
	instanceID string
	now        func() time.Time
}

// NewOfflineVerifier builds a verifier. A nil publicKey makes every check report
// an unknown status.
func NewOfflineVerifier(keys KeySource, publicKey ed25519.PublicKey, instanceID string) *OfflineVerifier {
	return &OfflineVerifier{
		keys:       keys,
		publicKey:  publicKey,
		instanceID: strings.TrimSpace(instanceID),
		now:        time.Now,
	}
}

// SetTimeFunc overrides the clock used for exp/nbf checks.
func (v *OfflineVerifier) SetTimeFunc(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Check implements compliance.Verifier. Only failures that leave the status
// undetermined are returned as errors.
func (v *OfflineVerifier) Check(ctx context.Context) (compliance.VerifierResult, error) {
	key, err := v.keys.Key(ctx)
	if err != nil {
		return compliance.UnknownResult, fmt.Errorf("read license key: %w", err)
	}

	claims, err := ParseKey(key, v.publicKey, v.now())
	status := StatusFor(err)
	if status == compliance.StatusUnknown {
		return compliance.UnknownResult, err
	}
	if err != nil {
		log.Debug().Err(err).Str("status", string(status)).Msg("License key did not validate")
		return compliance.VerifierResult{Status: status}, nil
	}

	return compliance.VerifierResult{
		Status:        status,
		SiteActivated: claims.ActivatedFor(v.instanceID),
	}, nil
}
