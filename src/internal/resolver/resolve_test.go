package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loonghao/msvc-kit/src/internal/archkit"
)

func fixtureCatalog() Catalog {
	return Catalog{Packages: []Package{
		{ID: "Microsoft.VC.14.44.Tools.HostX64.TargetX64.base", Version: "14.44.35207",
			Dependencies: map[string]string{"Microsoft.VC.14.44.CRT.TargetX64.base": "14.44.35207"}},
		{ID: "Microsoft.VC.14.42.Tools.HostX64.TargetX64.base", Version: "14.42.34433"},
		{ID: "Microsoft.VC.14.44.CRT.TargetX64.base", Version: "14.44.35207",
			Payloads: []Payload{{URL: "https://example.invalid/crt-x64.msi", Size: 100}}},
		{ID: "Microsoft.VC.14.44.CRT.TargetX64.base.Spectre", Version: "14.44.35207"},
		{ID: "Microsoft.Windows10SDK.10.0.26100.Headers", Version: "10.0.26100.1"},
		{ID: "Microsoft.Windows10SDK.10.0.22621.Headers", Version: "10.0.22621.5"},
	}}
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, KindMSVCTools, ClassifyKind("Microsoft.VC.14.44.Tools.HostX64.TargetX64.base"))
	assert.Equal(t, KindMSVCCRT, ClassifyKind("Microsoft.VC.14.44.CRT.TargetX64.base"))
	assert.Equal(t, KindSDKHeaders, ClassifyKind("Microsoft.Windows10SDK.10.0.26100.Headers"))
	assert.Equal(t, KindSDKLibs, ClassifyKind("Microsoft.Windows10SDK.10.0.26100.Libs.TargetX64"))
	assert.Equal(t, KindOther, ClassifyKind("Something.Unrelated"))
}

func TestIsSpectre(t *testing.T) {
	assert.True(t, IsSpectre("Microsoft.VC.14.44.CRT.TargetX64.base.Spectre"))
	assert.False(t, IsSpectre("Microsoft.VC.14.44.CRT.TargetX64.base"))
}

func TestIdentifierTargetAndHost(t *testing.T) {
	id := "Microsoft.VC.14.44.Tools.HostX64.TargetARM64.base"
	assert.Equal(t, "x64", IdentifierHost(id))
	assert.Equal(t, "arm64", IdentifierTarget(id))
}

func TestResolveMSVCLatest(t *testing.T) {
	cat := fixtureCatalog()
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkg, err := ResolveMSVC(cat, ParseVersionRef("latest"), pair)
	require.NoError(t, err)
	assert.Equal(t, "14.44.35207", pkg.Version)
}

func TestResolveMSVCExactVersion(t *testing.T) {
	cat := fixtureCatalog()
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	pkg, err := ResolveMSVC(cat, ParseVersionRef("14.42.34433"), pair)
	require.NoError(t, err)
	assert.Equal(t, "14.42.34433", pkg.Version)
}

func TestResolveMSVCNotFound(t *testing.T) {
	cat := fixtureCatalog()
	pair, err := archkit.NewPair(archkit.X64, archkit.X64)
	require.NoError(t, err)

	_, err = ResolveMSVC(cat, ParseVersionRef("99.99"), pair)
	assert.Error(t, err)
}

func TestResolveSDKPicksNewest(t *testing.T) {
	cat := fixtureCatalog()
	pkg, err := ResolveSDK(cat, ParseVersionRef("latest"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.26100.1", pkg.Version)
}

func TestPackagesForExpandsDependencies(t *testing.T) {
	cat := fixtureCatalog()
	root, err := cat.FindVersion("Microsoft.VC.14.44.Tools.HostX64.TargetX64.base", "14.44.35207")
	require.NoError(t, err)

	pkgs, err := PackagesFor(cat, root)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, root.ID, pkgs[0].ID)
	assert.Equal(t, "Microsoft.VC.14.44.CRT.TargetX64.base", pkgs[1].ID)
}

func TestAvailableVersionsSortedDescending(t *testing.T) {
	cat := fixtureCatalog()
	versions := AvailableVersions(cat, SDKRootPrefix)
	require.Len(t, versions, 2)
	assert.Equal(t, "10.0.26100.1", versions[0])
	assert.Equal(t, "10.0.22621.5", versions[1])
}
