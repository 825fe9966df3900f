package engine

import (
	"context"
	"path/filepath"

	"github.com/mlsafety/cegarete/internal/logger"
	"github.com/mlsafety/cegarete/pkg/archive"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/platform"
)

// BundleOptions configures InstallBundle.
type BundleOptions struct {
	// Name is the link name for the installed engine. Empty means DefaultName.
	Name string
	// Constraint, when set, is a version constraint the extracted engine must
	// satisfy, e.g. ">= 2.0".
	Constraint string
	// Force replaces an existing engine link with the same name.
	Force bool
}

// InstallBundle extracts an engine bundle archive into the engines directory
// and installs the extracted tree. Bundles carry their target platform in the
// filename (e.g. marabou_linux_amd64.tar.gz); a bundle built for a different
// platform is rejected before extraction.
func (r *Registry) InstallBundle(ctx context.Context, bundlePath string, opts BundleOptions) (*InstallResult, error) {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	target := platform.FromBundleName(filepath.Base(bundlePath))
	if !platform.CurrentPlatform().Matches(target) {
		return nil, errors.Wrapf(errors.ErrEngineInstall,
			"bundle %s is built for %s, host is %s",
			filepath.Base(bundlePath), target, platform.CurrentPlatform())
	}

	// The extracted tree lives next to the link that will point at it.
	destDir := filepath.Join(r.dir, name+".d")
	logger.Debug("extracting engine bundle", logger.Fields{
		"bundle": bundlePath,
		"dest":   destDir,
	})
	if err := archive.NewManager().ExtractAll(ctx, bundlePath, destDir); err != nil {
		return nil, errors.Wrap(err, "failed to extract engine bundle")
	}

	res, err := r.Install(ctx, destDir, name, opts.Force)
	if err != nil {
		return nil, err
	}

	if opts.Constraint != "" {
		if err := r.CheckVersion(ctx, name, opts.Constraint); err != nil {
			// Roll the link back so a rejected engine does not resolve.
			_, _ = r.Uninstall(name)
			return nil, err
		}
	}
	return res, nil
}
