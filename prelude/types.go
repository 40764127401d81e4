// Package prelude defines the data model shared by the prelude download and
// cache engine: specs, parsed provider URIs, and the top-level Prelude
// record. spec.md §3 describes these as plain records; the capability
// methods on Prelude (shouldDeploy/deploy/repl) are declared here as an
// external Runtime interface since PD only resolves and materializes files
// — deploying them is out of the core's scope.
package prelude

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kadena-community/pact-toolbox-sub005/pacterrors"
)

// PreludeSpec identifies one file or subtree sourced from a git provider.
// URI has the shape "<provider>:<owner>/<repo>[/<subpath>][#<ref>]".
type PreludeSpec struct {
	URI      string
	Name     string
	Group    string // empty means the enclosing group (for a flat list, the prelude name)
	Requires []PreludeSpec
}

// ParsedURI is PreludeSpec.URI broken into its components.
type ParsedURI struct {
	Provider string
	Owner    string
	Repo     string
	Subpath  string // may be empty, a directory, or a single ".pact" file
	Ref      string // may be empty
}

// BaseRepoKey is the "<provider>:<owner>/<repo>#<ref>" deduplication key
// used by the resolver to group specs that share a repository clone.
func (p ParsedURI) BaseRepoKey() string {
	return fmt.Sprintf("%s:%s/%s#%s", p.Provider, p.Owner, p.Repo, p.Ref)
}

// IsSingleFile reports whether Subpath names a single Pact source file
// rather than a directory.
func (p ParsedURI) IsSingleFile() bool {
	return p.Subpath != "" && strings.HasSuffix(p.Subpath, ".pact")
}

// ParseURI parses a PreludeSpec.URI into its components. Malformed URIs are
// an ErrConfigInvalid since a bad spec can only come from a misconfigured
// prelude list supplied at construction time.
func ParseURI(uri string) (ParsedURI, error) {
	provider, rest, ok := strings.Cut(uri, ":")
	if !ok || provider == "" {
		return ParsedURI{}, pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "prelude uri %q missing provider", uri)
	}

	ref := ""
	if body, fragment, hasRef := strings.Cut(rest, "#"); hasRef {
		rest = body
		ref = fragment
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ParsedURI{}, pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "prelude uri %q missing owner/repo", uri)
	}

	parsed := ParsedURI{
		Provider: provider,
		Owner:    parts[0],
		Repo:     parts[1],
		Ref:      ref,
	}
	if len(parts) == 3 {
		parsed.Subpath = parts[2]
	}
	return parsed, nil
}

// PreludeSpecs holds either a flat list of specs, or a grouped map from
// group name to specs, matching spec.md's "specs: [PreludeSpec] |
// map<group -> [PreludeSpec]>" union. Exactly one of the two fields is
// populated.
type PreludeSpecs struct {
	Flat    []PreludeSpec
	Grouped map[string][]PreludeSpec
}

// Prelude is a named bundle of Pact source files. shouldDeploy/deploy/repl
// are external capabilities (Runtime) never invoked by PD itself.
type Prelude struct {
	Name  string
	Specs PreludeSpecs
}

// Runtime is the external capability a CLI or deployer would implement;
// declared here only so the type referenced by spec.md §3 has a home, and
// to make explicit that PD never calls it.
type Runtime interface {
	ShouldDeploy(runtime any) bool
	Deploy(runtime any) error
	Repl(runtime any) (string, error)
}

// FlattenedSpec is one PreludeSpec after resolving which group it belongs
// to (default: the owning prelude's name), produced by Flatten from a
// Prelude's PreludeSpecs; its Requires are left unexpanded.
type FlattenedSpec struct {
	Prelude PreludeSpec
	Group   string
}

// Flatten normalizes a Prelude's Specs into a flat list of specs with a
// resolved Group, per spec.md §4.8 step 1. The Requires of each spec are
// NOT expanded here — the resolver expands those recursively as it
// materializes each spec, since Requires can themselves need their own
// base-repo dedup against the shared working set.
func (p Prelude) Flatten() []FlattenedSpec {
	if p.Specs.Grouped != nil {
		groups := make([]string, 0, len(p.Specs.Grouped))
		for group := range p.Specs.Grouped {
			groups = append(groups, group)
		}
		sort.Strings(groups)

		out := make([]FlattenedSpec, 0, len(p.Specs.Grouped))
		for _, group := range groups {
			for _, s := range p.Specs.Grouped[group] {
				g := s.Group
				if g == "" {
					g = group
				}
				out = append(out, FlattenedSpec{Prelude: s, Group: g})
			}
		}
		return out
	}
	out := make([]FlattenedSpec, 0, len(p.Specs.Flat))
	for _, s := range p.Specs.Flat {
		g := s.Group
		if g == "" {
			g = p.Name
		}
		out = append(out, FlattenedSpec{Prelude: s, Group: g})
	}
	return out
}
