package license

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// EmbeddedPublicKey is the production Ed25519 public key (base64), set at build time:
// go build -ldflags "-X github.com/rcourtman/pulse-compliance/internal/license.EmbeddedPublicKey=BASE64_KEY"
var EmbeddedPublicKey string

// LoadPublicKey returns the verification key. PULSE_LICENSE_PUBLIC_KEY takes
// priority over EmbeddedPublicKey. A nil key with a nil error means none is
// configured.
func LoadPublicKey() (ed25519.PublicKey, error) {
	if envKey := os.Getenv("PULSE_LICENSE_PUBLIC_KEY"); strings.TrimSpace(envKey) != "" {
		key, err := DecodePublicKey(envKey)
		if err != nil {
			return nil, fmt.Errorf("decode PULSE_LICENSE_PUBLIC_KEY: %w", err)
		}
		log.Info().Msg("License public key loaded from environment")
		return key, nil
	}
	if EmbeddedPublicKey != "" {
		key, err := DecodePublicKey(EmbeddedPublicKey)
		if err != nil {
			return nil, fmt.Errorf("decode embedded public key: %w", err)
		}
		log.Info().Msg("License public key loaded from embedded key")
		return key, nil
	}
	log.Warn().Msg("No license public key configured - license checks will report unknown")
	return nil, nil
}

// DecodePublicKey decodes a base64 (standard or URL-safe) Ed25519 public key.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes", ErrMalformedLicense, ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(decoded), nil
}
