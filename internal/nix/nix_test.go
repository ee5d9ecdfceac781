package nix_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/internal/nix"
)

func TestBase32RoundTrip(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := nix.EncodeBase32(data)
	decoded, err := nix.DecodeBase32(encoded, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestHashDataMatchesStreamHasher(t *testing.T) {
	data := []byte("hello, nix cache")
	direct := nix.HashData(data)

	sh := nix.NewStreamHasher()
	_, err := sh.Write(data)
	require.NoError(t, err)
	streamed, size := sh.Hash()

	assert.Equal(t, direct.String(), streamed.String())
	assert.EqualValues(t, len(data), size)
}

func TestStorePathHashAndName(t *testing.T) {
	sp := nix.StorePath{Path: "/nix/store/s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0"}
	hash, err := sp.Hash("/nix/store")
	require.NoError(t, err)
	assert.Equal(t, "s66mzxpvicwk07gjbjfw9izjfa7m175w", hash)

	name, err := sp.Name("/nix/store")
	require.NoError(t, err)
	assert.Equal(t, "firefox-1.0", name)
}

func TestStripStoreDirRejectsForeignPath(t *testing.T) {
	_, err := nix.StripStoreDir("/nix/store", "/not/the/store/path")
	assert.Error(t, err)
}

func TestNarInfoString(t *testing.T) {
	info := nix.NarInfo{
		StorePath:   "/nix/store/s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0",
		URL:         "nar/0000000000000000000000000000000000000000000000000000.nar.xz",
		Compression: "xz",
		FileHash:    nix.Hash{Algorithm: "sha256", Base32: "aaaa"},
		FileSize:    10,
		NarHash:     nix.Hash{Algorithm: "sha256", Base32: "bbbb"},
		NarSize:     20,
		References:  []string{"s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0"},
		Sigs:        []string{"cache:c2lnbmF0dXJl"},
	}
	text := info.String()
	assert.Contains(t, text, "StorePath: /nix/store/s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0\n")
	assert.Contains(t, text, "Compression: xz\n")
	assert.Contains(t, text, "Sig: cache:c2lnbmF0dXJl\n")
	// References must come before any Sig line, and Deriver/CA must be
	// omitted entirely when unset.
	assert.Less(t, strings.Index(text, "References:"), strings.Index(text, "Sig:"))
	assert.NotContains(t, text, "Deriver:")
	assert.NotContains(t, text, "CA:")
}

func TestFingerprint(t *testing.T) {
	fp := nix.Fingerprint(
		"/nix/store",
		"/nix/store/s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0",
		nix.Hash{Algorithm: "sha256", Base32: "bbbb"},
		20,
		[]string{"abc-dep"},
	)
	assert.Equal(t, "1;/nix/store/s66mzxpvicwk07gjbjfw9izjfa7m175w-firefox-1.0;sha256:bbbb;20;/nix/store/abc-dep", fp)
}

func TestCacheInfo(t *testing.T) {
	assert.Equal(t, "StoreDir: /nix/store\nWantMassQuery: 1\nPriority: 40\n", nix.CacheInfo("/nix/store", true, 40))
}
