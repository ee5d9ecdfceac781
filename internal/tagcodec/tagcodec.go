// Package tagcodec implements the bijective mapping between Nix binary cache
// object keys and the OCI Distribution reference-tag grammar
// (https://github.com/opencontainers/distribution-spec/blob/main/spec.md#pulling-manifests):
//
//	tag ::= [A-Za-z0-9_][A-Za-z0-9_.-]{0,127}
//
// Cache keys are arbitrary UTF-8 and commonly contain '/', ':', '!' and may
// start with '.'. Encode applies a fixed substitution table; Decode reverses
// it. A decode fallback chain lets callers keep reading tags produced by
// older, now-retired encodings.
package tagcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/linyinfeng/oranc/pkg/errdefs"
)

// MaxTagLength is the maximum length an OCI reference tag may have.
const MaxTagLength = 128

// escapeTable maps a source character to its fixed replacement.
var escapeTable = map[rune]string{
	'/': "_s_",
	':': "_c_",
	'!': "_b_",
	'+': "_p_",
	'=': "_e_",
	'@': "_a_",
	'_': "__",
}

// unescapeTable maps an escape's inner content back to the source text it
// represents. Entries mapping to "" are zero-width leading-character guards.
var unescapeTable = map[string]string{
	"s": "/",
	"c": ":",
	"b": "!",
	"p": "+",
	"e": "=",
	"a": "@",
	"":  "_",
	"d": "",
	"h": "",
}

func isGrammarChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-':
		return true
	}
	return false
}

// Encode maps key to the corresponding OCI reference tag. It returns
// errdefs.ErrKeyTooLong if the resulting tag would exceed MaxTagLength
// characters.
func Encode(key string) (string, error) {
	var b strings.Builder
	first := true
	for _, r := range key {
		var piece string
		if esc, ok := escapeTable[r]; ok {
			piece = esc
		} else if isGrammarChar(r) {
			piece = string(r)
		} else {
			piece = fmt.Sprintf("_u%04x_", r)
		}
		if first {
			first = false
			if piece == "." || piece == "-" {
				if piece == "." {
					b.WriteString("_d_")
				} else {
					b.WriteString("_h_")
				}
			}
		}
		b.WriteString(piece)
	}
	tag := b.String()
	if tag == "" {
		return "", errdefs.Newf(errdefs.ErrInvalidParameter, "cannot encode empty key")
	}
	if len(tag) > MaxTagLength {
		return "", errdefs.Newf(errdefs.ErrKeyTooLong, "encoded tag %d bytes exceeds limit of %d for key %q", len(tag), MaxTagLength, key)
	}
	return tag, nil
}

// Decode reverses Encode, returning the original key for a tag produced by
// the primary codec. It does not consult any fallback decoders; use
// DecodeChain for that.
func Decode(tag string) (string, error) {
	runes := []rune(tag)
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '_' {
			j := i + 1
			for j < len(runes) && runes[j] != '_' {
				j++
			}
			if j >= len(runes) {
				return "", errdefs.Newf(errdefs.ErrBadTag, "unterminated escape in tag %q", tag)
			}
			content := string(runes[i+1 : j])
			decoded, err := unescape(content)
			if err != nil {
				return "", errdefs.Newf(errdefs.ErrBadTag, "invalid escape %q in tag %q: %w", content, tag, err)
			}
			b.WriteString(decoded)
			i = j
			continue
		}
		if !isGrammarChar(r) {
			return "", errdefs.Newf(errdefs.ErrBadTag, "character %q outside tag grammar in tag %q", r, tag)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func unescape(content string) (string, error) {
	if v, ok := unescapeTable[content]; ok {
		return v, nil
	}
	// Encode writes at least four hex digits, and up to six for runes
	// above U+FFFF.
	if len(content) >= 5 && len(content) <= 7 && content[0] == 'u' {
		n, err := strconv.ParseUint(content[1:], 16, 32)
		if err != nil {
			return "", fmt.Errorf("invalid unicode escape %q: %w", content, err)
		}
		return string(rune(n)), nil
	}
	return "", fmt.Errorf("unknown escape %q", content)
}

// FallbackDecoder decodes a tag produced by a now-retired encoding scheme.
type FallbackDecoder func(tag string) (string, error)

// Codec bundles the primary codec with an ordered chain of fallback decoders
// consulted when the primary decoder rejects a tag. Encoding always uses the
// primary codec.
type Codec struct {
	fallbacks []FallbackDecoder
}

// New returns a Codec with the given fallback decoders, tried in order after
// the primary decoder fails.
func New(fallbacks ...FallbackDecoder) *Codec {
	return &Codec{fallbacks: fallbacks}
}

// Encode maps key to an OCI reference tag using the primary codec.
func (c *Codec) Encode(key string) (string, error) {
	return Encode(key)
}

// Decode reverses Encode, trying the primary decoder first and then each
// registered fallback in order. It returns errdefs.ErrBadTag if every decoder
// in the chain fails.
func (c *Codec) Decode(tag string) (string, error) {
	key, primaryErr := Decode(tag)
	if primaryErr == nil {
		return key, nil
	}
	for _, fb := range c.fallbacks {
		if key, err := fb(tag); err == nil {
			return key, nil
		}
	}
	return "", errdefs.NewE(errdefs.ErrBadTag, primaryErr)
}
