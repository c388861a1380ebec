// Package resolver implements C4: parsing the channel -> catalog -> package
// list chain, resolving VersionRef values to concrete builds, and
// transitively expanding a package's dependency references. Grounded
// structurally on the teacher's src/internal/resolver package (a
// fetch-then-parse-then-resolve pipeline over an HTTP-delivered JSON
// document), though the wire format itself is entirely msvc-kit's own.
package resolver

import "strings"

// Payload is a single downloadable artifact belonging to a Package.
type Payload struct {
	URL              string `json:"url"`
	SHA256           string `json:"sha256,omitempty"`
	Size             int64  `json:"size"`
	InstallPath      string `json:"installPath,omitempty"`
	FileName         string `json:"fileName,omitempty"`
}

// Package is a named group of payloads, the selector's filtering
// granularity (spec.md §3 Catalog invariants).
type Package struct {
	ID           string            `json:"id"`
	Version      string            `json:"version"`
	Chip         string            `json:"chip,omitempty"`
	Payloads     []Payload         `json:"payloads,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Kind classifies a Package by the structural form of its identifier.
type Kind string

const (
	KindMSVCTools          Kind = "MSVC_TOOLS"
	KindMSVCCRT            Kind = "MSVC_CRT"
	KindMSVCMFC            Kind = "MSVC_MFC"
	KindMSVCATL            Kind = "MSVC_ATL"
	KindMSVCHeadersSource  Kind = "MSVC_HEADERS_SOURCE"
	KindSDKHeaders         Kind = "SDK_HEADERS"
	KindSDKLibs            Kind = "SDK_LIBS"
	KindSDKTools           Kind = "SDK_TOOLS"
	KindSDKCRT             Kind = "SDK_CRT"
	KindOther              Kind = "OTHER"
)

// ClassifyKind derives a Package's Kind purely from its identifier's
// structural form, per spec.md §3. Identifiers follow these shapes:
//
//	Microsoft.VC.<ver>.Tools.Host<HOST>.Target<TARGET>.base
//	Microsoft.VC.<ver>.CRT.Target<TARGET>.base[.Spectre]
//	Microsoft.VC.<ver>.MFC.Target<TARGET>[.Spectre]
//	Microsoft.VC.<ver>.ATL.Target<TARGET>[.Spectre]
//	Microsoft.VC.<ver>.CRT.Headers.base
//	Microsoft.Windows10SDK.<ver>.Headers
//	Microsoft.Windows10SDK.<ver>.Libs.Target<TARGET>
//	Microsoft.Windows10SDK.<ver>.Tools.Target<TARGET>
//	Microsoft.Windows10SDK.<ver>.CRT.Target<TARGET>
func ClassifyKind(id string) Kind {
	switch {
	case strings.Contains(id, ".VC.") && strings.Contains(id, ".Tools.Host"):
		return KindMSVCTools
	case strings.Contains(id, ".VC.") && strings.Contains(id, ".CRT.Headers"):
		return KindMSVCHeadersSource
	case strings.Contains(id, ".VC.") && strings.Contains(id, ".CRT."):
		return KindMSVCCRT
	case strings.Contains(id, ".VC.") && strings.Contains(id, ".MFC."):
		return KindMSVCMFC
	case strings.Contains(id, ".VC.") && strings.Contains(id, ".ATL."):
		return KindMSVCATL
	case strings.Contains(id, "Windows10SDK") && strings.Contains(id, ".Headers"):
		return KindSDKHeaders
	case strings.Contains(id, "Windows10SDK") && strings.Contains(id, ".Libs."):
		return KindSDKLibs
	case strings.Contains(id, "Windows10SDK") && strings.Contains(id, ".Tools."):
		return KindSDKTools
	case strings.Contains(id, "Windows10SDK") && strings.Contains(id, ".CRT."):
		return KindSDKCRT
	default:
		return KindOther
	}
}

// IsSpectre reports whether id marks a Spectre-mitigated variant of a
// CRT/MFC/ATL package (excluded by default, spec.md §4.5).
func IsSpectre(id string) bool {
	return strings.Contains(id, ".Spectre")
}

// IdentifierTarget extracts the "Target<ARCH>" architecture tag embedded
// in an identifier, empty if none is present.
func IdentifierTarget(id string) string {
	return extractTag(id, "Target")
}

// IdentifierHost extracts the "Host<ARCH>" architecture tag embedded in an
// identifier, empty if none is present.
func IdentifierHost(id string) string {
	return extractTag(id, "Host")
}

func extractTag(id, prefix string) string {
	idx := strings.Index(id, prefix)
	if idx == -1 {
		return ""
	}
	rest := id[idx+len(prefix):]
	end := strings.IndexAny(rest, ".")
	if end == -1 {
		end = len(rest)
	}
	return strings.ToLower(rest[:end])
}
