package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
	"github.com/loonghao/msvc-kit/src/internal/resolver"
)

func pkg(id string, payloads ...resolver.Payload) resolver.Package {
	return resolver.Package{ID: id, Version: "1.0", Payloads: payloads}
}

func payload(url string) resolver.Payload {
	return resolver.Payload{URL: url, Size: 10}
}

func TestSelectDropsSpectreByDefault(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.CRT.TargetX64.base", payload("a")),
		pkg("Microsoft.VC.14.44.CRT.TargetX64.base.Spectre", payload("b")),
	}

	got := Select(pkgs, pair, Extras{})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].URL)
}

func TestSelectIncludesSpectreWhenRequested(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.CRT.TargetX64.base", payload("a")),
		pkg("Microsoft.VC.14.44.CRT.TargetX64.base.Spectre", payload("b")),
	}

	got := Select(pkgs, pair, Extras{IncludeSpectre: true})
	assert.Len(t, got, 2)
}

func TestSelectDropsMFCAndATLByDefault(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.MFC.TargetX64", payload("mfc")),
		pkg("Microsoft.VC.14.44.ATL.TargetX64", payload("atl")),
	}

	assert.Empty(t, Select(pkgs, pair, Extras{}))
	assert.Len(t, Select(pkgs, pair, Extras{IncludeMFC: true}), 1)
	assert.Len(t, Select(pkgs, pair, Extras{IncludeATL: true}), 1)
}

func TestSelectToolsOnlyForExactHostTarget(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.ARM64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.Tools.HostX64.TargetARM64.base", payload("match")),
		pkg("Microsoft.VC.14.44.Tools.HostX64.TargetX64.base", payload("other")),
	}

	got := Select(pkgs, pair, Extras{})
	require.Len(t, got, 1)
	assert.Equal(t, "match", got[0].URL)
}

func TestSelectCrossToolsKeepsReversePair(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.ARM64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.Tools.HostX64.TargetARM64.base", payload("forward")),
		pkg("Microsoft.VC.14.44.Tools.HostARM64.TargetX64.base", payload("reverse")),
	}

	got := Select(pkgs, pair, Extras{IncludeCrossTools: true})
	assert.Len(t, got, 2)
}

func TestSelectCRTOnlyForTarget(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.ARM64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.CRT.TargetARM64.base", payload("target")),
		pkg("Microsoft.VC.14.44.CRT.TargetX64.base", payload("other")),
	}

	got := Select(pkgs, pair, Extras{})
	require.Len(t, got, 1)
	assert.Equal(t, "target", got[0].URL)
}

func TestSelectHeadersAlwaysKept(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.CRT.Headers.base", payload("msvc-headers")),
		pkg("Microsoft.Windows10SDK.10.0.26100.Headers", payload("sdk-headers")),
	}

	got := Select(pkgs, pair, Extras{})
	assert.Len(t, got, 2)
}

func TestSelectComponentFilter(t *testing.T) {
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkgs := []resolver.Package{
		pkg("Microsoft.VC.14.44.CRT.Headers.base", payload("msvc")),
		pkg("Microsoft.Windows10SDK.10.0.26100.Headers", payload("sdk")),
	}

	got := Select(pkgs, pair, Extras{Component: "sdk"})
	require.Len(t, got, 1)
	assert.Equal(t, "sdk", got[0].URL)
}
