// Package archkit implements the Architecture data model (spec.md §3):
// a small enumerated tag plus the host/target pair every pipeline
// operation carries.
package archkit

import (
	"fmt"
	"runtime"

	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

// Architecture is a CPU architecture tag understood by the VS manifest
// identifiers (Hostx64, TargetARM64, and so on).
type Architecture string

const (
	X64   Architecture = "x64"
	X86   Architecture = "x86"
	ARM64 Architecture = "arm64"
	ARM   Architecture = "arm"
)

// Valid reports whether a is one of the four enumerated tags.
func (a Architecture) Valid() bool {
	switch a {
	case X64, X86, ARM64, ARM:
		return true
	default:
		return false
	}
}

// Title returns the capitalized form used inside VS manifest identifiers,
// e.g. "X64", "ARM64".
func (a Architecture) Title() string {
	switch a {
	case X64:
		return "X64"
	case X86:
		return "X86"
	case ARM64:
		return "ARM64"
	case ARM:
		return "ARM"
	default:
		return string(a)
	}
}

// Pair is the (host, target) architecture tuple every selection and
// layout operation is parameterized by.
type Pair struct {
	Host   Architecture
	Target Architecture
}

// NewPair validates and constructs a Pair. An empty host defaults to the
// process's native architecture. "arm" is only ever valid as a target.
func NewPair(host, target Architecture) (Pair, error) {
	if host == "" {
		host = Native()
	}
	if !host.Valid() {
		return Pair{}, kiterrors.New(kiterrors.Config, fmt.Sprintf("invalid host architecture %q", host))
	}
	if host == ARM {
		return Pair{}, kiterrors.New(kiterrors.Config, "arm is only valid as a target architecture, not a host")
	}
	if !target.Valid() {
		return Pair{}, kiterrors.New(kiterrors.Config, fmt.Sprintf("invalid target architecture %q", target))
	}
	return Pair{Host: host, Target: target}, nil
}

// Native returns the process's native architecture, defaulting to X64 for
// any GOARCH this tool doesn't model (the staged output always targets
// Windows regardless of the host the tool itself runs on).
func Native() Architecture {
	switch runtime.GOARCH {
	case "amd64":
		return X64
	case "386":
		return X86
	case "arm64":
		return ARM64
	case "arm":
		return ARM
	default:
		return X64
	}
}
