package remote

import (
	"context"
	"fmt"

	"github.com/linyinfeng/oranc/pkg/ocispec/distribution"
	ocispecname "github.com/linyinfeng/oranc/pkg/ocispec/name"
	"github.com/linyinfeng/oranc/pkg/util/xio"
)

// Registry is a client for a single remote registry host, shared by every
// [Repository] obtained from it so that authentication challenges and
// tokens are cached across repositories on the same host.
type Registry struct {
	name   ocispecname.Registry
	client *Client
}

// Named returns the name of the registry.
func (r *Registry) Named() ocispecname.Registry {
	return r.name
}

func (r *Registry) builder() *distribution.RouteBuilder {
	b := &distribution.RouteBuilder{}
	return b.WithBaseURL(fmt.Sprintf("%s://%s", r.name.Scheme(), r.name.Hostname()))
}

// Ping checks the registry is accessible.
func (r *Registry) Ping(ctx context.Context) error {
	endpoint := r.builder().Endpoint(distribution.RoutePing)
	request, err := endpoint.BuildRequest(ctx)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(request) //nolint:bodyclose // closed by xio.CloseAndSkipError
	if err != nil {
		return err
	}
	defer xio.CloseAndSkipError(resp.Body)
	return distribution.HTTPSuccess(resp, endpoint.Descriptor().SuccessCodes...)
}

// RepositoryE returns the [Repository] for the given repository path.
func (r *Registry) RepositoryE(path string) (*Repository, error) {
	name, err := ocispecname.WithPath(r.name, path)
	if err != nil {
		return nil, err
	}
	return &Repository{Registry: r, name: name}, nil
}
