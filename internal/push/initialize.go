package push

import (
	"context"
	"fmt"

	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/pkg/ocispec/cas"
)

// Initialize publishes the repository's "nix-cache-info" object, declaring
// its store directory, mass-query participation and priority. It uses the
// same blob+manifest primitives as a regular push.
func (p *Pusher) Initialize(ctx context.Context, wantMassQuery bool, priority int) error {
	body := []byte(nix.CacheInfo(p.cfg.storeDir(), wantMassQuery, priority))
	reader := cas.NewReaderFromBytes(p.cfg.layerMediaType(), body)
	desc := reader.Descriptor()

	tag, err := p.cfg.codec().Encode("nix-cache-info")
	if err != nil {
		return fmt.Errorf("push: encoding tag for nix-cache-info: %w", err)
	}

	if existing, found, err := p.existingLayerDigestCached(ctx, tag); err != nil {
		return err
	} else if found && existing == desc.Digest {
		return nil
	}

	if err := p.repo.Blobs().Push(ctx, reader); err != nil {
		return fmt.Errorf("push: uploading nix-cache-info: %w", err)
	}
	if err := p.publishObject(ctx, tag, desc); err != nil {
		return err
	}
	p.manifests.Set(ctx, tag, digestRecord{digest: string(desc.Digest)})
	return nil
}
