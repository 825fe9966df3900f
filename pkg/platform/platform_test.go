package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentPlatform(t *testing.T) {
	p := CurrentPlatform()
	assert.Equal(t, NormalizeOS(runtime.GOOS), p.OS)
	assert.Equal(t, NormalizeArch(runtime.GOARCH), p.Arch)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		p       Platform
		target  Platform
		matches bool
	}{
		{"exact match", Platform{OSLinux, ArchAMD64}, Platform{OSLinux, ArchAMD64}, true},
		{"os mismatch", Platform{OSLinux, ArchAMD64}, Platform{OSDarwin, ArchAMD64}, false},
		{"arch mismatch", Platform{OSLinux, ArchAMD64}, Platform{OSLinux, ArchARM64}, false},
		{"any os", Platform{AnyOS, ArchAMD64}, Platform{OSWindows, ArchAMD64}, true},
		{"any arch target", Platform{OSLinux, ArchAMD64}, Platform{OSLinux, AnyArch}, true},
		{"fully wildcarded", Platform{AnyOS, AnyArch}, Platform{OSDarwin, ArchARM64}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.p.Matches(tt.target))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, OSDarwin, NormalizeOS("macOS"))
	assert.Equal(t, OSWindows, NormalizeOS("Win"))
	assert.Equal(t, OSLinux, NormalizeOS("Linux"))
	assert.Equal(t, ArchAMD64, NormalizeArch("x86_64"))
	assert.Equal(t, ArchARM64, NormalizeArch("aarch64"))
	assert.Equal(t, "386", NormalizeArch("i686"))
}

func TestFromBundleName(t *testing.T) {
	tests := []struct {
		filename string
		want     Platform
	}{
		{"marabou_linux_amd64.tar.gz", Platform{OSLinux, ArchAMD64}},
		{"marabou_darwin_aarch64.zip", Platform{OSDarwin, ArchARM64}},
		{"marabou-2.0_windows_amd64.tgz", Platform{OSWindows, ArchAMD64}},
		{"marabou.tar.gz", Platform{AnyOS, AnyArch}},
		{"engine_bundle", Platform{AnyOS, AnyArch}},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, FromBundleName(tt.filename))
		})
	}
}
