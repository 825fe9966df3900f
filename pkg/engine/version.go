package engine

import (
	"context"
	"regexp"

	"github.com/hashicorp/go-version"

	"github.com/mlsafety/cegarete/pkg/errors"
)

// versionPattern matches the first dotted version number in the probe output.
// Marabou prints a line like "Marabou version 2.0.0".
var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// Version probes the installed engine and parses its version number from the
// output.
func (r *Registry) Version(ctx context.Context, name string) (*version.Version, error) {
	out, err := r.Probe(ctx, name)
	if err != nil {
		return nil, err
	}
	return parseVersion(out)
}

// CheckVersion verifies that the installed engine's version satisfies the
// given constraint, e.g. ">= 1.0, < 3.0".
func (r *Registry) CheckVersion(ctx context.Context, name, constraint string) error {
	constraints, err := version.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %q", constraint)
	}

	v, err := r.Version(ctx, name)
	if err != nil {
		return err
	}
	if !constraints.Check(v) {
		return errors.Wrapf(errors.ErrEngineVersion, "engine %s is %s, want %s", name, v, constraint)
	}
	return nil
}

func parseVersion(probeOutput string) (*version.Version, error) {
	match := versionPattern.FindString(probeOutput)
	if match == "" {
		return nil, errors.Wrapf(errors.ErrVerifierOutput, "no version number in %q", probeOutput)
	}
	v, err := version.NewVersion(match)
	if err != nil {
		return nil, errors.Wrapf(err, "bad version %q", match)
	}
	return v, nil
}
