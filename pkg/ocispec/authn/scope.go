package authn

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Actions usable with [RepositoryScope].
const (
	ActionPull   = "pull"
	ActionPush   = "push"
	ActionDelete = "delete"
)

// RepositoryScope returns the scope string for the repository with the
// given actions, e.g. "repository:foo:pull,push". Returns "" if repository
// is empty or no non-empty action is given.
func RepositoryScope(repository string, actions ...string) string {
	if repository == "" {
		return ""
	}
	cleaned := cleanActions(actions)
	if len(cleaned) == 0 {
		return ""
	}
	return fmt.Sprintf("repository:%s:%s", repository, strings.Join(cleaned, ","))
}

type scopesContextKey struct{}

// WithScopes returns a copy of ctx carrying exactly the given scopes,
// cleaned and de-duplicated, overwriting any scopes already attached.
func WithScopes(ctx context.Context, scopes ...string) context.Context {
	return context.WithValue(ctx, scopesContextKey{}, CleanScopes(scopes))
}

// AppendScopes returns a copy of ctx carrying the union of its existing
// scopes and the given scopes, cleaned and de-duplicated.
func AppendScopes(ctx context.Context, scopes ...string) context.Context {
	merged := append(append([]string{}, GetScopes(ctx)...), scopes...)
	return WithScopes(ctx, merged...)
}

// GetScopes returns the scopes attached to ctx, or nil if none.
func GetScopes(ctx context.Context) []string {
	scopes, _ := ctx.Value(scopesContextKey{}).([]string)
	return scopes
}

// CleanScopes merges, de-duplicates and sorts scopes, returning nil if no
// scope carries any action. Scopes of the well-known "type:name:actions"
// shape are grouped by "type:name" and have their actions merged; anything
// else is kept as an opaque, literal scope.
func CleanScopes(scopes []string) []string {
	type group struct {
		key     string
		raw     bool
		actions []string
	}
	groups := make(map[string]*group)
	for _, s := range scopes {
		if s == "" {
			continue
		}
		parts := strings.SplitN(s, ":", 3)
		key := s
		raw := true
		if len(parts) == 3 {
			key = parts[0] + ":" + parts[1]
			raw = false
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, raw: raw}
			groups[key] = g
		}
		if !raw {
			g.actions = append(g.actions, strings.Split(parts[2], ",")...)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result []string
	for _, k := range keys {
		g := groups[k]
		if g.raw {
			result = append(result, g.key)
			continue
		}
		actions := cleanActions(g.actions)
		if len(actions) == 0 {
			continue
		}
		result = append(result, g.key+":"+strings.Join(actions, ","))
	}
	return result
}

// cleanActions de-duplicates and sorts actions, dropping empty entries. A
// "*" action absorbs every other action in the list.
func cleanActions(actions []string) []string {
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	if _, ok := set["*"]; ok {
		return []string{"*"}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
