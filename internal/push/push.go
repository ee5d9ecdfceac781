package push

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/internal/oracle"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution"
	"github.com/linyinfeng/oranc/pkg/ocispec/distribution/remote"
	"github.com/linyinfeng/oranc/pkg/util/xcache"
	"github.com/linyinfeng/oranc/pkg/xlog"
)

// Pusher streams store paths recorded in an Oracle into a single OCI
// repository, one manifest per Nix cache object.
type Pusher struct {
	cfg       *Config
	oracle    oracle.Oracle
	repo      distribution.Repository
	manifests xcache.Cache[digestRecord]
}

// New builds a Pusher talking to cfg.Registry/cfg.Repository on behalf of o.
func New(ctx context.Context, cfg *Config, o oracle.Oracle) (*Pusher, error) {
	scheme := "https"
	if cfg.NoSSL {
		scheme = "http"
	}
	name := fmt.Sprintf("%s://%s/%s", scheme, cfg.Registry, cfg.Repository)

	var opts []remote.Option
	if cfg.AuthProvider != nil {
		client := remote.NewClient()
		client.AuthProvider = cfg.AuthProvider
		opts = append(opts, remote.WithClient(client))
	}
	repo, err := remote.NewRepositoryWithContext(ctx, name, opts...)
	if err != nil {
		return nil, fmt.Errorf("push: opening repository %q: %w", name, err)
	}

	return &Pusher{
		cfg:       cfg,
		oracle:    o,
		repo:      repo,
		manifests: xcache.NewMemory[digestRecord](),
	}, nil
}

// Push resolves targets (expanding closures unless cfg.NoClosure is set) and
// pushes every resulting store path, bounding concurrency to cfg.Parallel.
// A single path's failure is logged and tallied; it never aborts the batch.
func (p *Pusher) Push(ctx context.Context, targets []string) (*Summary, error) {
	paths, err := p.resolveTargets(ctx, targets)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.parallel())
	for _, sp := range paths {
		sp := sp
		group.Go(func() error {
			outcome, err := p.pushOne(gctx, sp)
			switch {
			case err != nil:
				xlog.C(gctx).Errorf("push %s: %v", sp.Path, err)
				summary.recordFailed()
			case outcome == pushOutcomeUploaded:
				summary.recordUploaded()
			case outcome == pushOutcomeExcluded:
				summary.recordExcluded()
			default:
				summary.recordSkipped()
			}
			return nil
		})
	}
	_ = group.Wait()
	return summary, nil
}

// resolveTargets turns the requested store paths into the full set of
// nix.StorePath records to push: the paths themselves plus, unless
// cfg.NoClosure is set, every path transitively referenced by them.
func (p *Pusher) resolveTargets(ctx context.Context, targets []string) ([]nix.StorePath, error) {
	seen := make(map[string]struct{})
	var paths []nix.StorePath

	add := func(sp nix.StorePath) {
		if _, ok := seen[sp.Path]; ok {
			return
		}
		seen[sp.Path] = struct{}{}
		paths = append(paths, sp)
	}

	for _, target := range targets {
		if p.cfg.NoClosure {
			sp, err := p.oracle.PathInfo(ctx, target)
			if err != nil {
				return nil, fmt.Errorf("push: resolving %q: %w", target, err)
			}
			add(sp)
			continue
		}
		closure, err := p.oracle.Closure(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("push: resolving closure of %q: %w", target, err)
		}
		for _, sp := range closure {
			add(sp)
		}
	}
	return paths, nil
}
