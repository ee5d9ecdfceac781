package sign_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/internal/nix/sign"
)

func generateTestKey(t *testing.T, name string) sign.KeyPair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	secret := fmt.Sprintf("%s:%s", name, base64.StdEncoding.EncodeToString(priv))
	kp, err := sign.KeyPairFromSecretKeyString(secret)
	require.NoError(t, err)
	return kp
}

func TestSignAndVerify(t *testing.T) {
	kp := generateTestKey(t, "cache.example.org-1")
	data := []byte("1;/nix/store/xxx-foo;sha256:aaa;10;")
	sig := kp.Sign(data)
	assert.Equal(t, kp.Name, sig.Name)
	require.NoError(t, kp.Verify(data, sig))
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	kp := generateTestKey(t, "cache.example.org-1")
	sig := kp.Sign([]byte("original"))
	assert.Error(t, kp.Verify([]byte("tampered"), sig))
}

func TestParseSignatureList(t *testing.T) {
	sigs, err := sign.ParseSignatureList("a:YQ== b:Yg==")
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "a", sigs[0].Name)
	assert.Equal(t, "b", sigs[1].Name)

	empty, err := sign.ParseSignatureList("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMergeIdempotent(t *testing.T) {
	kp := generateTestKey(t, "cache.example.org-1")
	data := []byte("fingerprint")
	sig := kp.Sign(data)

	merged, err := sign.Merge(nil, kp, data, sig)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	// merging the same signature again must be a no-op, not a duplicate.
	merged, err = sign.Merge(merged, kp, data, sig)
	require.NoError(t, err)
	assert.Len(t, merged, 1)
}

func TestMergeRejectsConflictingSignature(t *testing.T) {
	kp := generateTestKey(t, "cache.example.org-1")
	data := []byte("fingerprint")
	first := kp.Sign(data)

	forged := sign.Signature{Name: kp.Name, Data: base64.StdEncoding.EncodeToString([]byte("not-a-real-signature-000000000000000000000000000000000000000000"))}
	_, err := sign.Merge([]sign.Signature{forged}, kp, data, first)
	assert.Error(t, err)
}
