package remote

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/linyinfeng/oranc/pkg/ocispec/authn"
	"github.com/linyinfeng/oranc/pkg/ocispec/authn/authfile"
	"github.com/linyinfeng/oranc/pkg/xlog"
)

// AuthProvider provides the AuthConfig related to the registry.
type AuthProvider func(ctx context.Context, host string) authn.AuthConfig

// NewAuthProviderFromAuthFile returns an AuthProvider backed by an already
// loaded *authfile.AuthFile.
func NewAuthProviderFromAuthFile(authFile *authfile.AuthFile) AuthProvider {
	return func(ctx context.Context, host string) authn.AuthConfig {
		authConfig, err := authFile.Get(ctx, host)
		if err != nil {
			xlog.C(ctx).Warnf("failed to get auth config for host %s: %v", host, err)
		}
		return authConfig
	}
}

// NewAuthProviderFromAuthFilePath returns an AuthProvider reading the auth
// file at path. A missing file is not an error; lookups simply return an
// empty AuthConfig.
func NewAuthProviderFromAuthFilePath(path string) (AuthProvider, error) {
	authFile := authfile.NewAuthFile(path)
	if err := authFile.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load auth file: %w", err)
		}
	}
	return NewAuthProviderFromAuthFile(authFile), nil
}
