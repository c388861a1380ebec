package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

const (
	// VCToolsRootPrefix and SDKRootPrefix are the identifier prefixes of
	// the two "root" package families a version is resolved against: the
	// VC tools package pins the MSVC build, the SDK headers package pins
	// the SDK build.
	VCToolsRootPrefix  = "Microsoft.VC."
	SDKRootPrefix      = "Microsoft.Windows10SDK."
	LatestVersionToken = "latest"
)

// VersionRef is a user-supplied version selector: "latest", an exact
// build ("14.44.35207"), or a dotted prefix ("14.44").
type VersionRef struct {
	Raw string
}

// ParseVersionRef normalizes raw ("", "latest" are both treated as the
// latest-available sentinel).
func ParseVersionRef(raw string) VersionRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = LatestVersionToken
	}
	return VersionRef{Raw: raw}
}

// IsLatest reports whether the ref resolves to "whatever is newest".
func (v VersionRef) IsLatest() bool {
	return strings.EqualFold(v.Raw, LatestVersionToken)
}

// AvailableVersions returns every distinct version string attached to a
// catalog package whose identifier starts with idPrefix, newest first.
func AvailableVersions(catalog Catalog, idPrefix string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range catalog.Packages {
		if !strings.HasPrefix(p.ID, idPrefix) {
			continue
		}
		if seen[p.Version] {
			continue
		}
		seen[p.Version] = true
		out = append(out, p.Version)
	}
	sortVersionsDescending(out)
	return out
}

// ResolveMSVC picks the Tools root package matching ref and pair, the
// entry point for a full MSVC toolchain acquisition (spec.md §4.4).
func ResolveMSVC(catalog Catalog, ref VersionRef, pair archkit.Pair) (Package, error) {
	candidates := filterByIDSubstrings(catalog.Packages, VCToolsRootPrefix, ".Tools.Host"+strings.ToLower(string(pair.Host))+".target"+strings.ToLower(string(pair.Target)))
	return pickVersion(candidates, ref, "MSVC Tools for "+string(pair.Host)+"->"+string(pair.Target))
}

// ResolveSDK picks the Headers root package matching ref, the entry point
// for a Windows SDK acquisition. The SDK headers package carries no
// architecture tag; per-architecture Libs/Tools/CRT packages are pulled
// in later by the selector against the same resolved version.
func ResolveSDK(catalog Catalog, ref VersionRef) (Package, error) {
	candidates := filterByIDSubstrings(catalog.Packages, SDKRootPrefix, ".Headers")
	return pickVersion(candidates, ref, "Windows SDK")
}

func filterByIDSubstrings(pkgs []Package, prefix string, mustContainLower string) []Package {
	var out []Package
	for _, p := range pkgs {
		if !strings.HasPrefix(p.ID, prefix) {
			continue
		}
		if mustContainLower != "" && !strings.Contains(strings.ToLower(p.ID), mustContainLower) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func pickVersion(candidates []Package, ref VersionRef, what string) (Package, error) {
	if len(candidates) == 0 {
		return Package{}, kiterrors.New(kiterrors.VersionNotFound, "no candidates found for "+what)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return compareBuilds(candidates[i].Version, candidates[j].Version) > 0
	})
	if ref.IsLatest() {
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c.Version == ref.Raw {
			return c, nil
		}
	}
	for _, c := range candidates {
		if strings.HasPrefix(c.Version, ref.Raw+".") || c.Version == ref.Raw {
			return c, nil
		}
	}
	return Package{}, kiterrors.New(kiterrors.VersionNotFound, fmt.Sprintf("no %s matching version %q", what, ref.Raw))
}

// PackagesFor transitively expands root's Dependencies map into the full
// set of Packages needed to satisfy it, breaking cycles with a visited
// set keyed by "id@version" (spec.md §4.4 dependency expansion).
func PackagesFor(catalog Catalog, root Package) ([]Package, error) {
	visited := map[string]bool{}
	var out []Package
	var walk func(p Package) error
	walk = func(p Package) error {
		key := p.ID + "@" + p.Version
		if visited[key] {
			return nil
		}
		visited[key] = true
		out = append(out, p)
		for depID, depVersion := range p.Dependencies {
			dep, err := catalog.FindVersion(depID, depVersion)
			if err != nil {
				return kiterrors.Wrap(kiterrors.ManifestParse, "resolve dependency "+depID+"@"+depVersion+" of "+p.ID, err)
			}
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// compareBuilds orders two build strings newest-first. MSVC builds are
// 3-segment and parse as semver; SDK builds are 4-segment and fall back to
// a numeric tuple comparison semver.NewVersion rejects.
func compareBuilds(a, b string) int {
	av, aerr := semver.NewVersion(normalizeSemver(a))
	bv, berr := semver.NewVersion(normalizeSemver(b))
	if aerr == nil && berr == nil {
		return av.Compare(bv)
	}
	return compareNumericTuples(a, b)
}

// normalizeSemver pads a 2-segment build ("14.44") to 3 segments so
// semver.NewVersion accepts it; leaves longer strings untouched.
func normalizeSemver(v string) string {
	if strings.Count(v, ".") == 1 {
		return v + ".0"
	}
	return v
}

func compareNumericTuples(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

func sortVersionsDescending(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		return compareBuilds(versions[i], versions[j]) > 0
	})
}
