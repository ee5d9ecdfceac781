package push

import (
	"encoding/hex"

	"github.com/opencontainers/go-digest"

	"github.com/linyinfeng/oranc/internal/nix"
)

// nixHashFromDigest converts an OCI content digest into the Nix-format hash
// carried in a narinfo's NarHash/FileHash fields: the same SHA-256 sum,
// rendered as nix-base32 instead of hex.
func nixHashFromDigest(d digest.Digest) (nix.Hash, error) {
	raw, err := hex.DecodeString(d.Encoded())
	if err != nil {
		return nix.Hash{}, err
	}
	return nix.Hash{Algorithm: d.Algorithm().String(), Base32: nix.EncodeBase32(raw)}, nil
}
