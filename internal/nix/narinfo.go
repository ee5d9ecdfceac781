package nix

import (
	"fmt"
	"strings"
)

// NarInfo is the textual metadata record Nix fetches as "<hash>.narinfo" to
// locate and verify a NAR. FileHash/FileSize describe the compressed
// artifact uploaded as a layer; NarHash/NarSize describe the uncompressed
// NAR Nix actually verifies against.
type NarInfo struct {
	StorePath   string
	URL         string
	Compression string
	FileHash    Hash
	FileSize    int64
	NarHash     Hash
	NarSize     int64
	References  []string
	Deriver     string
	Sigs        []string
	CA          string
}

// String renders the narinfo in the exact field order Nix expects.
func (n NarInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "StorePath: %s\n", n.StorePath)
	fmt.Fprintf(&b, "URL: %s\n", n.URL)
	fmt.Fprintf(&b, "Compression: %s\n", n.Compression)
	fmt.Fprintf(&b, "FileHash: %s\n", n.FileHash)
	fmt.Fprintf(&b, "FileSize: %d\n", n.FileSize)
	fmt.Fprintf(&b, "NarHash: %s\n", n.NarHash)
	fmt.Fprintf(&b, "NarSize: %d\n", n.NarSize)
	fmt.Fprintf(&b, "References: %s\n", strings.Join(n.References, " "))
	if n.Deriver != "" {
		fmt.Fprintf(&b, "Deriver: %s\n", n.Deriver)
	}
	for _, sig := range n.Sigs {
		fmt.Fprintf(&b, "Sig: %s\n", sig)
	}
	if n.CA != "" {
		fmt.Fprintf(&b, "CA: %s\n", n.CA)
	}
	return b.String()
}

// Fingerprint builds the canonical string Nix signs to produce a narinfo's
// Sig lines: "1;<storepath>;<narhash>;<narsize>;<comma-joined full reference
// paths>". See https://github.com/NixOS/nix/blob/master/perl/lib/Nix/Manifest.pm.
func Fingerprint(storeDir, storePath string, narHash Hash, narSize int64, references []string) string {
	full := make([]string, len(references))
	for i, r := range references {
		full[i] = storeDir + "/" + r
	}
	return fmt.Sprintf("1;%s;%s;%d;%s", storePath, narHash, narSize, strings.Join(full, ","))
}

// CacheInfo renders the "nix-cache-info" payload published once by
// `oranc push initialize`.
func CacheInfo(storeDir string, wantMassQuery bool, priority int) string {
	mq := 0
	if wantMassQuery {
		mq = 1
	}
	return fmt.Sprintf("StoreDir: %s\nWantMassQuery: %d\nPriority: %d\n", storeDir, mq, priority)
}
