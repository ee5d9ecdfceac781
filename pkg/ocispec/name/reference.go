package name

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/linyinfeng/oranc/pkg/errdefs"
)

type taggedReference struct {
	repo Repository
	tag  string
}

func (r taggedReference) String() string {
	return fmt.Sprintf("%s:%s", r.repo, r.tag)
}

func (r taggedReference) Repository() Repository {
	return r.repo
}

func (r taggedReference) Tag() string {
	return r.tag
}

type digestedReference struct {
	repo   Repository
	digest digest.Digest
}

func (r digestedReference) String() string {
	return fmt.Sprintf("%s@%s", r.repo, r.digest)
}

func (r digestedReference) Repository() Repository {
	return r.repo
}

func (r digestedReference) Digest() digest.Digest {
	return r.digest
}

// newReference parses "[scheme://][domain/]remote-name[:tag][@digest]" into
// a Reference, defaulting the tag to [DefaultTag] when neither tag nor
// digest is given.
func newReference(name string, opts options) (Reference, error) {
	scheme, rest := SplitScheme(name)

	var digestPart string
	if i := strings.LastIndex(rest, "@"); i != -1 {
		rest, digestPart = rest[:i], rest[i+1:]
	}

	domain, remainder := splitDomainAndRemainder(rest)

	var tag string
	if i := strings.IndexRune(remainder, ':'); i != -1 {
		remainder, tag = remainder[:i], remainder[i+1:]
	}

	repoName := domain
	if remainder != "" {
		if repoName != "" {
			repoName += "/"
		}
		repoName += remainder
	}
	if scheme != "" {
		repoName = scheme + "://" + repoName
	}

	repo, err := newRepository(repoName, opts)
	if err != nil {
		return nil, err
	}

	switch {
	case digestPart != "":
		dgst, err := digest.Parse(digestPart)
		if err != nil {
			return nil, errdefs.Newf(ErrInvalidReference, "invalid digest %q: %v", digestPart, err)
		}
		return WithDigest(repo, dgst)
	case tag != "":
		return WithTag(repo, tag)
	default:
		return WithTag(repo, DefaultTag)
	}
}

// splitDomainAndRemainder mirrors the domain/path disambiguation rule used
// by parseRepository: a leading component is only treated as a domain if it
// contains a "." or ":" or is exactly "localhost". A name without "/" has
// no domain component.
func splitDomainAndRemainder(name string) (domain string, remainder string) {
	i := strings.IndexRune(name, '/')
	switch {
	case i == -1:
		return "", name
	case !strings.ContainsAny(name[:i], ".:") && name[:i] != "localhost":
		return "", name
	default:
		return name[:i], name[i+1:]
	}
}
