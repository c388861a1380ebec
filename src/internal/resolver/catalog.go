package resolver

import "github.com/loonghao/msvc-kit/src/internal/kiterrors"

// Catalog is the parsed VS Manifest document: a flat list of Packages,
// each possibly carrying multiple versions under the same ID (spec.md §3).
type Catalog struct {
	Packages []Package `json:"packages"`
}

func (c Catalog) validate() error {
	if len(c.Packages) == 0 {
		return kiterrors.New(kiterrors.ManifestParse, "catalog has no packages")
	}
	for i, p := range c.Packages {
		if p.ID == "" {
			return kiterrors.New(kiterrors.ManifestParse, "catalog package at index has empty id")
		}
		if p.Version == "" {
			return kiterrors.New(kiterrors.ManifestParse, "catalog package "+p.ID+" has empty version")
		}
		_ = i
	}
	return nil
}

// byID indexes the catalog's packages by identifier, with multiple
// versions of the same ID bucketed together.
func (c Catalog) byID() map[string][]Package {
	out := make(map[string][]Package, len(c.Packages))
	for _, p := range c.Packages {
		out[p.ID] = append(out[p.ID], p)
	}
	return out
}

// Find returns every Package sharing id, across all versions present in
// the catalog.
func (c Catalog) Find(id string) []Package {
	var out []Package
	for _, p := range c.Packages {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

// FindVersion returns the single Package matching both id and version,
// VersionNotFound if absent.
func (c Catalog) FindVersion(id, version string) (Package, error) {
	for _, p := range c.Packages {
		if p.ID == id && p.Version == version {
			return p, nil
		}
	}
	return Package{}, kiterrors.New(kiterrors.VersionNotFound, "no package "+id+" at version "+version)
}
