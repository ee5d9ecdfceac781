package tagcodec

import (
	"encoding/base32"
	"strings"
)

// base32DNSSECEncoding mirrors the base32 extended-hex ("DNSSEC") alphabet,
// unpadded. Base32DNSSECFallback upper-cases its input first, so decoding is
// case-insensitive. An earlier
// generation of cache-key encodings base32-encoded the whole key this way;
// Base32DNSSECFallback lets those historical tags keep decoding.
var base32DNSSECEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// Base32DNSSECFallback decodes a tag produced by the retired whole-key
// base32-DNSSEC encoding. It is meant to be passed to New as a
// FallbackDecoder.
func Base32DNSSECFallback(tag string) (string, error) {
	data, err := base32DNSSECEncoding.DecodeString(strings.ToUpper(tag))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
