// Package gpg verifies detached OpenPGP signatures over vulnerability
// database update payloads.
package gpg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// armorPrefix starts every armored signature block
const armorPrefix = "-----BEGIN PGP SIGNATURE---"

// maxSignatureSize bounds a downloaded signature (real ones are < 1KB)
const maxSignatureSize = 10 * 1024

// ErrNoKeys is returned when verifying against an empty keyring
var ErrNoKeys = errors.New("no signing keys imported")

// Verifier checks detached signatures using ProtonMail's go-crypto
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{keyring: make(openpgp.EntityList, 0)}
}

// NewVerifierFromFiles creates a verifier holding the keys in every file
func NewVerifierFromFiles(paths ...string) (*Verifier, error) {
	v := NewVerifier()
	for _, path := range paths {
		if err := v.ImportKeyFromFile(path); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ImportKeyFromFile imports an armored or binary public key file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath comes from configuration
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	return v.ImportKeys(data)
}

// ImportKeys imports keys from an armored or binary keyring
func (v *Verifier) ImportKeys(data []byte) error {
	keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no keys found in key data")
	}

	v.keyring = append(v.keyring, keys...)
	return nil
}

// KeyringSize returns the number of imported keys
func (v *Verifier) KeyringSize() int {
	return len(v.keyring)
}

// Verify checks that sig is a valid detached signature over data made by
// one of the imported keys. Armored and binary signatures are accepted.
func (v *Verifier) Verify(data []byte, sig io.Reader) error {
	if len(v.keyring) == 0 {
		return ErrNoKeys
	}

	sigData, err := io.ReadAll(io.LimitReader(sig, maxSignatureSize))
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	if len(sigData) < 10 {
		return fmt.Errorf("signature too small to be a valid OpenPGP signature")
	}

	if bytes.HasPrefix(sigData, []byte(armorPrefix)) {
		_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(sigData), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(sigData), nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
