package push

import (
	"fmt"

	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/internal/nix/sign"
)

// plan reports whether sp should be pushed. A path already carrying a
// signature from a key matching ExcludedSigningKeyPattern is assumed to be
// served already by that key's own cache and is skipped, unless
// AlreadySigned overrides the exclusion.
func (p *Pusher) plan(sp nix.StorePath) (bool, error) {
	if p.cfg.ExcludedSigningKeyPattern == nil {
		return true, nil
	}
	for _, s := range sp.Signatures {
		sig, err := sign.ParseSignature(s)
		if err != nil {
			return false, fmt.Errorf("push: parsing recorded signature of %q: %w", sp.Path, err)
		}
		if p.cfg.ExcludedSigningKeyPattern.MatchString(sig.Name) && !p.cfg.AlreadySigned {
			return false, nil
		}
	}
	return true, nil
}
