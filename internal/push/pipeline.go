package push

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/linyinfeng/oranc/internal/compression"
	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/internal/nix/sign"
	"github.com/linyinfeng/oranc/pkg/errdefs"
	"github.com/linyinfeng/oranc/pkg/ocispec/cas"
)

// pushOutcome classifies how pushOne disposed of a single store path.
type pushOutcome int

const (
	pushOutcomeUploaded pushOutcome = iota
	pushOutcomeSkipped
	pushOutcomeExcluded
)

// pushOne runs the pipeline for a single store path: plan, NAR
// serialize+hash, compress+hash, duplicate detection, blob upload, narinfo
// build and manifest publication.
func (p *Pusher) pushOne(ctx context.Context, sp nix.StorePath) (pushOutcome, error) {
	proceed, err := p.plan(sp)
	if err != nil {
		return 0, err
	}
	if !proceed {
		return pushOutcomeExcluded, nil
	}

	storeDir := p.cfg.storeDir()
	hashPart, err := sp.Hash(storeDir)
	if err != nil {
		return 0, err
	}

	narPath, narHash, narSize, err := p.serializeNar(ctx, sp)
	if err != nil {
		return 0, err
	}
	defer os.Remove(narPath)

	fileHash, fileSize, layerUploaded, err := p.compressAndUpload(ctx, sp, narPath)
	if err != nil {
		return 0, err
	}

	narKey := narInfoURL(fileHash, p.cfg.compression())
	narinfoUploaded, err := p.publishNarInfo(ctx, sp, narinfoInputs{
		storeDir: storeDir,
		hashPart: hashPart,
		narKey:   narKey,
		narHash:  narHash,
		narSize:  narSize,
		fileHash: fileHash,
		fileSize: fileSize,
	})
	if err != nil {
		return 0, err
	}

	if layerUploaded || narinfoUploaded {
		return pushOutcomeUploaded, nil
	}
	return pushOutcomeSkipped, nil
}

// narInfoURL renders a narinfo's URL field for a compressed layer addressed
// by fileHash, e.g. "nar/<base32>.nar.xz".
func narInfoURL(fileHash nix.Hash, alg compression.Algorithm) string {
	key := "nar/" + fileHash.Base32 + ".nar"
	if ext := alg.Extension(); ext != "" {
		key += "." + ext
	}
	return key
}

// serializeNar streams sp's canonical NAR into a temp file, hashing it with
// nix's own stream hasher. The caller owns the returned temp file and must
// remove it. A recorded NarHash mismatch is reported as ErrDigestMismatch:
// the oracle's cached hash disagrees with what the store actually contains.
func (p *Pusher) serializeNar(ctx context.Context, sp nix.StorePath) (narPath string, narHash nix.Hash, narSize int64, err error) {
	narStream, err := p.oracle.NarStream(ctx, sp.Path)
	if err != nil {
		return "", nix.Hash{}, 0, fmt.Errorf("push: opening nar stream for %q: %w", sp.Path, err)
	}
	defer narStream.Close()

	narFile, err := os.CreateTemp("", "oranc-nar-*")
	if err != nil {
		return "", nix.Hash{}, 0, fmt.Errorf("push: creating nar temp file: %w", err)
	}
	defer narFile.Close()

	hasher := nix.NewStreamHasher()
	if _, err := io.Copy(io.MultiWriter(narFile, hasher), narStream); err != nil {
		os.Remove(narFile.Name())
		return "", nix.Hash{}, 0, fmt.Errorf("push: serializing nar for %q: %w", sp.Path, err)
	}
	narHash, narSize = hasher.Hash()

	if sp.NarHash.Base32 != "" && sp.NarHash.String() != narHash.String() {
		os.Remove(narFile.Name())
		return "", nix.Hash{}, 0, errdefs.NewE(errdefs.ErrDigestMismatch,
			fmt.Errorf("push: %q: recomputed nar hash %s does not match recorded %s", sp.Path, narHash, sp.NarHash))
	}

	return narFile.Name(), narHash, narSize, nil
}

// compressAndUpload compresses the NAR at narPath and, unless an identical
// layer manifest is already published under its tag, uploads it as a blob
// and (re-)publishes its manifest. It returns the layer's Nix-format file
// hash, its compressed size, and whether anything was actually written.
func (p *Pusher) compressAndUpload(ctx context.Context, sp nix.StorePath, narPath string) (nix.Hash, int64, bool, error) {
	narFile, err := os.Open(narPath)
	if err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: reopening nar for %q: %w", sp.Path, err)
	}
	defer narFile.Close()

	compFile, err := os.CreateTemp("", "oranc-layer-*")
	if err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: creating layer temp file: %w", err)
	}
	defer os.Remove(compFile.Name())
	defer compFile.Close()

	digester := digest.Canonical.Digester()
	writer, err := compression.NewWriter(io.MultiWriter(compFile, digester.Hash()), p.cfg.compression())
	if err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: %q: %w", sp.Path, err)
	}
	if _, err := io.Copy(writer, narFile); err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: compressing nar for %q: %w", sp.Path, err)
	}
	if err := writer.Close(); err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: finalizing compressed stream for %q: %w", sp.Path, err)
	}

	fileDigest := digester.Digest()
	fileHash, err := nixHashFromDigest(fileDigest)
	if err != nil {
		return nix.Hash{}, 0, false, err
	}
	fileInfo, err := compFile.Stat()
	if err != nil {
		return nix.Hash{}, 0, false, err
	}
	fileSize := fileInfo.Size()

	narKey := narInfoURL(fileHash, p.cfg.compression())
	narTag, err := p.cfg.codec().Encode(narKey)
	if err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: encoding tag for %q: %w", narKey, err)
	}

	layerDesc := imgspecv1.Descriptor{
		MediaType: p.cfg.layerMediaType(),
		Digest:    fileDigest,
		Size:      fileSize,
	}

	existing, found, err := p.existingLayerDigestCached(ctx, narTag)
	if err != nil {
		return nix.Hash{}, 0, false, err
	}
	if found && existing == fileDigest {
		return fileHash, fileSize, false, nil
	}

	blobExists, err := p.repo.Blobs().Exists(ctx, layerDesc)
	if err != nil {
		return nix.Hash{}, 0, false, fmt.Errorf("push: checking nar layer for %q: %w", sp.Path, err)
	}
	if !blobExists {
		if _, err := compFile.Seek(0, io.SeekStart); err != nil {
			return nix.Hash{}, 0, false, err
		}
		layerReader := cas.NewReader(compFile, layerDesc)
		if err := p.repo.Blobs().Push(ctx, layerReader); err != nil {
			return nix.Hash{}, 0, false, fmt.Errorf("push: uploading nar layer for %q: %w", sp.Path, err)
		}
	}
	if err := p.publishObject(ctx, narTag, layerDesc); err != nil {
		return nix.Hash{}, 0, false, err
	}
	p.manifests.Set(ctx, narTag, digestRecord{digest: string(fileDigest)})

	return fileHash, fileSize, true, nil
}

// narinfoInputs carries everything publishNarInfo needs beyond sp itself, so
// the hashes compressAndUpload already computed are not recomputed.
type narinfoInputs struct {
	storeDir string
	hashPart string
	narKey   string
	narHash  nix.Hash
	narSize  int64
	fileHash nix.Hash
	fileSize int64
}

// publishNarInfo builds sp's narinfo, signs its fingerprint (merging with
// any already-recorded signature from the pipeline's own key) and publishes
// it as a single-layer manifest, skipping the upload if an identical
// narinfo manifest is already present.
func (p *Pusher) publishNarInfo(ctx context.Context, sp nix.StorePath, in narinfoInputs) (bool, error) {
	strippedRefs := make([]string, 0, len(sp.References))
	for _, r := range sp.References {
		rel, err := nix.StripStoreDir(in.storeDir, r)
		if err != nil {
			return false, fmt.Errorf("push: %q: %w", sp.Path, err)
		}
		strippedRefs = append(strippedRefs, rel)
	}

	fingerprint := nix.Fingerprint(in.storeDir, sp.Path, in.narHash, in.narSize, strippedRefs)

	existingSigs := make([]sign.Signature, 0, len(sp.Signatures))
	for _, s := range sp.Signatures {
		parsed, err := sign.ParseSignature(s)
		if err != nil {
			return false, fmt.Errorf("push: parsing recorded signature of %q: %w", sp.Path, err)
		}
		existingSigs = append(existingSigs, parsed)
	}

	newSig := p.cfg.SigningKey.Sign([]byte(fingerprint))
	merged, err := sign.Merge(existingSigs, p.cfg.SigningKey, []byte(fingerprint), newSig)
	if err != nil {
		return false, fmt.Errorf("push: %q: %w", sp.Path, err)
	}

	deriver := sp.Deriver
	if deriver != "" {
		if rel, err := nix.StripStoreDir(in.storeDir, deriver); err == nil {
			deriver = rel
		}
	}

	narInfo := nix.NarInfo{
		StorePath:   sp.Path,
		URL:         in.narKey,
		Compression: p.cfg.compression().NarInfoCompression(),
		FileHash:    in.fileHash,
		FileSize:    in.fileSize,
		NarHash:     in.narHash,
		NarSize:     in.narSize,
		References:  strippedRefs,
		Deriver:     deriver,
		Sigs:        sign.Strings(merged),
		CA:          sp.CA,
	}

	body := []byte(narInfo.String())
	narinfoReader := cas.NewReaderFromBytes(p.cfg.layerMediaType(), body)
	narinfoDesc := narinfoReader.Descriptor()

	narinfoKey := in.hashPart + ".narinfo"
	narinfoTag, err := p.cfg.codec().Encode(narinfoKey)
	if err != nil {
		return false, fmt.Errorf("push: encoding tag for %q: %w", narinfoKey, err)
	}

	existing, found, err := p.existingLayerDigestCached(ctx, narinfoTag)
	if err != nil {
		return false, err
	}
	if found && existing == narinfoDesc.Digest {
		return false, nil
	}

	narinfoBlobExists, err := p.repo.Blobs().Exists(ctx, narinfoDesc)
	if err != nil {
		return false, fmt.Errorf("push: checking narinfo for %q: %w", sp.Path, err)
	}
	if !narinfoBlobExists {
		if err := p.repo.Blobs().Push(ctx, narinfoReader); err != nil {
			return false, fmt.Errorf("push: uploading narinfo for %q: %w", sp.Path, err)
		}
	}
	if err := p.publishObject(ctx, narinfoTag, narinfoDesc); err != nil {
		return false, err
	}
	p.manifests.Set(ctx, narinfoTag, digestRecord{digest: string(narinfoDesc.Digest)})
	return true, nil
}
