// Package sign implements Nix's binary-cache signing scheme: Ed25519
// signatures over a narinfo fingerprint, keyed by a human-readable key name
// and rendered as "name:base64signature" text.
package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/linyinfeng/oranc/pkg/errdefs"
)

// KeyPair is a named Ed25519 signing key in Nix's own secret-key format: the
// 64-byte "seed || public key" layout Go's crypto/ed25519 already uses
// natively for ed25519.PrivateKey, so no re-encoding is needed beyond base64.
type KeyPair struct {
	Name string
	key  ed25519.PrivateKey
}

// KeyPairFromSecretKeyString parses a Nix-format secret key, as produced by
// `nix-store --generate-binary-cache-key` and read from ORANC_SIGNING_KEY:
// "<name>:<base64 secret key>".
func KeyPairFromSecretKeyString(s string) (KeyPair, error) {
	name, b64, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return KeyPair{}, errdefs.Newf(errdefs.ErrInvalidParameter, "invalid nix signing key: missing \"name:\" prefix")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return KeyPair{}, errdefs.Newf(errdefs.ErrInvalidParameter, "invalid nix signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return KeyPair{}, errdefs.Newf(errdefs.ErrInvalidParameter, "invalid nix signing key: expected %d byte secret key, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return KeyPair{Name: name, key: ed25519.PrivateKey(raw)}, nil
}

// PublicKeyString renders the key's public half in Nix's own
// "name:base64publickey" format, as printed by `nix-store --generate-binary-cache-key`.
func (k KeyPair) PublicKeyString() string {
	pub := k.key.Public().(ed25519.PublicKey)
	return fmt.Sprintf("%s:%s", k.Name, base64.StdEncoding.EncodeToString(pub))
}

// Sign signs data (a narinfo fingerprint) and returns the resulting
// Signature.
func (k KeyPair) Sign(data []byte) Signature {
	sig := ed25519.Sign(k.key, data)
	return Signature{Name: k.Name, Data: base64.StdEncoding.EncodeToString(sig)}
}

// Verify reports whether sig is a valid signature over data by this key.
func (k KeyPair) Verify(data []byte, sig Signature) error {
	raw, err := base64.StdEncoding.DecodeString(sig.Data)
	if err != nil {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "invalid signature encoding: %w", err)
	}
	pub := k.key.Public().(ed25519.PublicKey)
	if !ed25519.Verify(pub, data, raw) {
		return errdefs.Newf(errdefs.ErrSignatureMismatch, "signature by %q does not verify", sig.Name)
	}
	return nil
}

// Signature is a single "Sig:" line's content: a key name and a base64
// Ed25519 signature.
type Signature struct {
	Name string
	Data string
}

// String renders the signature in Nix's "name:base64sig" form.
func (s Signature) String() string {
	return fmt.Sprintf("%s:%s", s.Name, s.Data)
}

// ParseSignature parses a single "name:base64sig" signature, as found in a
// narinfo's "Sig:" field or a store path's recorded "sigs" column.
func ParseSignature(s string) (Signature, error) {
	name, data, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return Signature{}, errdefs.Newf(errdefs.ErrInvalidParameter, "invalid signature %q: missing \"name:\" prefix", s)
	}
	return Signature{Name: name, Data: data}, nil
}

// ParseSignatureList parses a space-separated list of signatures, as stored
// in the Nix database's ValidPaths.sigs column and the narinfo's Sig lines.
// An empty or all-whitespace string yields a nil slice and no error.
func ParseSignatureList(s string) ([]Signature, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	sigs := make([]Signature, 0, len(fields))
	for _, f := range fields {
		sig, err := ParseSignature(f)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Merge adds newSig to sigs, keyed by key, enforcing Nix's re-signing
// policy: if sigs already contains a signature by the same key name, it must
// verify against data and be byte-identical to newSig, or Merge fails with
// errdefs.ErrSignatureMismatch. Merge returns the (possibly unchanged) list.
func Merge(sigs []Signature, key KeyPair, data []byte, newSig Signature) ([]Signature, error) {
	for _, existing := range sigs {
		if existing.Name != key.Name {
			continue
		}
		if err := key.Verify(data, existing); err != nil {
			return nil, err
		}
		if existing.Data != newSig.Data {
			return nil, errdefs.Newf(errdefs.ErrSignatureMismatch, "existing signature by %q does not match recomputed signature", key.Name)
		}
		return sigs, nil
	}
	return append(sigs, newSig), nil
}

// Strings renders a signature list as the "Sig:"-ready strings NarInfo.Sigs
// expects, preserving order.
func Strings(sigs []Signature) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.String()
	}
	return out
}
