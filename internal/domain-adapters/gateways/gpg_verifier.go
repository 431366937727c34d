package gateways

import (
	"fmt"
	"io"

	"github.com/ochairo/vulnscan/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter so the update feed can require
// signed payloads without importing openpgp directly
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier loads the signing keys from the given keyring files
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(keyPaths ...string) (*gpgVerifier, error) {
	if len(keyPaths) == 0 {
		return nil, fmt.Errorf("no signing key files configured")
	}
	v, err := gpg.NewVerifierFromFiles(keyPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to import signing keys: %w", err)
	}
	return &gpgVerifier{verifier: v}, nil
}

// Verify checks a detached signature over data
func (g *gpgVerifier) Verify(data []byte, sig io.Reader) error {
	if err := g.verifier.Verify(data, sig); err != nil {
		return fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return nil
}

// KeyringSize returns the number of keys loaded
func (g *gpgVerifier) KeyringSize() int {
	return g.verifier.KeyringSize()
}
