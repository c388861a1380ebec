// Package selector implements C5: a pure function reducing a resolved
// package set to the payload list the downloader will fetch. No I/O, no
// network, no cache — grounded on the teacher's resolver.FilterCandidates
// (also a pure slice-in/slice-out filter with no side effects), generalized
// from PyPI wheel-tag filtering to MSVC/SDK architecture and variant
// filtering.
package selector

import (
	"strings"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
)

// Extras narrows or widens the default selection beyond the bare
// host/target pair, mirroring spec.md §4.5's optional switches.
type Extras struct {
	IncludeSpectre     bool
	IncludeATL         bool
	IncludeMFC         bool
	IncludeCrossTools  bool
	Component          string // "msvc", "sdk", or "" for both
}

// Select reduces pkgs to the Payloads a download run should fetch, in
// catalog order, applying rules in this fixed priority (spec.md §4.5):
//
//  1. Drop Spectre-mitigated variants unless Extras.IncludeSpectre.
//  2. Drop MFC packages unless Extras.IncludeMFC.
//  3. Drop ATL packages unless Extras.IncludeATL.
//  4. Keep MSVC_TOOLS only for the exact host/target pair, unless
//     IncludeCrossTools also keeps the reverse pair (needed for a
//     cross-compiling toolchain that still runs its own host tools).
//  5. Keep MSVC_CRT/SDK_LIBS/SDK_CRT only for pair.Target.
//  6. Always keep MSVC_HEADERS_SOURCE and SDK_HEADERS (architecture
//     independent).
//  7. Component filters to only MSVC_* or only SDK_* kinds when set.
func Select(pkgs []resolver.Package, pair archkit.Pair, extras Extras) []resolver.Payload {
	var out []resolver.Payload
	for _, p := range pkgs {
		if !keepPackage(p, pair, extras) {
			continue
		}
		out = append(out, p.Payloads...)
	}
	return out
}

func keepPackage(p resolver.Package, pair archkit.Pair, extras Extras) bool {
	kind := resolver.ClassifyKind(p.ID)

	if resolver.IsSpectre(p.ID) && !extras.IncludeSpectre {
		return false
	}
	if kind == resolver.KindMSVCMFC && !extras.IncludeMFC {
		return false
	}
	if kind == resolver.KindMSVCATL && !extras.IncludeATL {
		return false
	}
	if extras.Component != "" {
		isMSVC := strings.HasPrefix(string(kind), "MSVC")
		isSDK := strings.HasPrefix(string(kind), "SDK")
		if extras.Component == "msvc" && !isMSVC {
			return false
		}
		if extras.Component == "sdk" && !isSDK {
			return false
		}
	}

	switch kind {
	case resolver.KindMSVCTools:
		host := resolver.IdentifierHost(p.ID)
		target := resolver.IdentifierTarget(p.ID)
		if host == strings.ToLower(string(pair.Host)) && target == strings.ToLower(string(pair.Target)) {
			return true
		}
		if extras.IncludeCrossTools && host == strings.ToLower(string(pair.Target)) && target == strings.ToLower(string(pair.Host)) {
			return true
		}
		return false
	case resolver.KindMSVCCRT, resolver.KindSDKLibs, resolver.KindSDKCRT:
		target := resolver.IdentifierTarget(p.ID)
		return target == "" || target == strings.ToLower(string(pair.Target))
	case resolver.KindMSVCMFC, resolver.KindMSVCATL:
		target := resolver.IdentifierTarget(p.ID)
		return target == "" || target == strings.ToLower(string(pair.Target))
	case resolver.KindSDKTools:
		target := resolver.IdentifierTarget(p.ID)
		return target == "" || target == strings.ToLower(string(pair.Host))
	case resolver.KindMSVCHeadersSource, resolver.KindSDKHeaders:
		return true
	default:
		return true
	}
}
