// Package platform provides constants and utilities for handling
// platform-specific information such as operating systems and architectures.
// Engine bundles are built per platform, so install paths need to know which
// bundle fits the host.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	// OSWindows represents the Windows operating system.
	OSWindows = "windows"
	// OSLinux represents the Linux operating system.
	OSLinux = "linux"
	// OSDarwin represents the macOS operating system.
	OSDarwin = "darwin"
	// AnyOS represents any possible OS.
	AnyOS = "any"

	// ArchAMD64 represents the AMD64 (x86_64) architecture.
	ArchAMD64 = "amd64"
	// ArchARM64 represents the ARM64 (AArch64) architecture.
	ArchARM64 = "arm64"
	// AnyArch represents any possible architecture.
	AnyArch = "any"
)

// Platform represents a target platform with OS and Architecture.
// Both OS and Arch can be "any" to match any platform
// or a specific value like "linux", "windows", "amd64", etc.
type Platform struct {
	OS   string `yaml:"os" json:"os"`
	Arch string `yaml:"arch" json:"arch"`
}

// CurrentPlatform returns the current platform (OS and architecture).
func CurrentPlatform() Platform {
	return Platform{
		OS:   NormalizeOS(runtime.GOOS),
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

// Matches checks if this platform matches the target platform.
// "any" is a wildcard that matches any value.
func (p Platform) Matches(target Platform) bool {
	return (p.OS == AnyOS || target.OS == AnyOS || p.OS == target.OS) &&
		(p.Arch == AnyArch || target.Arch == AnyArch || p.Arch == target.Arch)
}

// String returns a string representation of the platform.
func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// NormalizeOS normalizes OS names to a common format.
func NormalizeOS(os string) string {
	os = strings.ToLower(os)
	switch os {
	case "win", "windows":
		return OSWindows
	case "macos", "osx", "darwin":
		return OSDarwin
	default:
		return os
	}
}

// NormalizeArch normalizes architecture names to a common format.
func NormalizeArch(arch string) string {
	arch = strings.ToLower(arch)
	switch arch {
	case "x86_64", "x64":
		return ArchAMD64
	case "x86", "i386", "i686":
		return "386"
	case "aarch64":
		return ArchARM64
	default:
		return arch
	}
}

// FromBundleName extracts the target platform from an engine bundle filename
// of the form <engine>_<os>_<arch>.<ext>, e.g. marabou_linux_amd64.tar.gz.
// Filenames without a platform suffix yield the any/any wildcard.
func FromBundleName(filename string) Platform {
	base := filename
	for _, ext := range []string{".tar.gz", ".tgz", ".tar.xz", ".tar.bz2", ".zip"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return Platform{OS: AnyOS, Arch: AnyArch}
	}
	return Platform{
		OS:   NormalizeOS(parts[len(parts)-2]),
		Arch: NormalizeArch(parts[len(parts)-1]),
	}
}
