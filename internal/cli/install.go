package cli

import (
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlsafety/cegarete/pkg/download"
	"github.com/mlsafety/cegarete/pkg/engine"
	"github.com/mlsafety/cegarete/pkg/errors"
)

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	var (
		name       string
		force      bool
		fromURL    string
		checksum   string
		token      string
		constraint string
	)

	cmd := &cobra.Command{
		Use:   "install [ENGINE_DIR|BUNDLE.tar.gz]",
		Short: "Install a verification engine",
		Long: `Install a verification engine by linking a local engine directory into the
engines directory, or by extracting an engine bundle archive.

The directory must contain the engine binary (build/Marabou by default). A
missing binary after install is reported but does not fail the command: the
engine may simply not be compiled yet.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromURL == "" && len(args) == 0 {
				return errors.Wrap(errors.ErrValidation, "need an engine directory, a bundle, or --from-url")
			}
			return runInstall(cmd, args, installOptions{
				name:       name,
				force:      force,
				fromURL:    fromURL,
				checksum:   checksum,
				token:      token,
				constraint: constraint,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Engine name (defaults to the configured default engine)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an already installed engine with the same name")
	cmd.Flags().StringVar(&fromURL, "from-url", "", "Download the engine bundle from this URL")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected SHA-256 of a downloaded bundle")
	cmd.Flags().StringVar(&token, "bearer-token", "", "Bearer token for the bundle host")
	cmd.Flags().StringVar(&constraint, "version", "", "Version constraint the engine must satisfy (e.g. \">= 2.0\")")

	return cmd
}

type installOptions struct {
	name       string
	force      bool
	fromURL    string
	checksum   string
	token      string
	constraint string
}

func runInstall(cmd *cobra.Command, args []string, opts installOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := newRegistry(cfg)
	name := engineName(cfg, opts.name)

	source := ""
	if len(args) > 0 {
		source = args[0]
	}

	if opts.fromURL != "" {
		u, err := url.Parse(opts.fromURL)
		if err != nil {
			return errors.Wrapf(errors.ErrValidation, "invalid URL %q", opts.fromURL)
		}
		dlOpts := download.Options{Dir: cfg.Settings.BundleCacheDir}
		if opts.token != "" {
			dlOpts.Auth = download.BearerAuth{Token: opts.token}
		}
		dl := download.NewManager(cfg.Settings.HTTPTimeout, "")
		source, err = dl.Fetch(cmd.Context(), download.Item{URL: u, Checksum: opts.checksum}, dlOpts)
		if err != nil {
			return err
		}
		cmd.Printf("Downloaded bundle to %s\n", source)
	}

	var res *engine.InstallResult
	if isBundle(source) {
		res, err = reg.InstallBundle(cmd.Context(), source, engine.BundleOptions{
			Name:       name,
			Constraint: opts.constraint,
			Force:      opts.force,
		})
	} else {
		res, err = reg.Install(cmd.Context(), source, name, opts.force)
		if err == nil && opts.constraint != "" {
			if verr := reg.CheckVersion(cmd.Context(), name, opts.constraint); verr != nil {
				_, _ = reg.Uninstall(name)
				return verr
			}
		}
	}
	if err != nil {
		return err
	}

	cmd.Printf("Installed engine %s -> %s\n", res.Name, res.Target)
	if res.ProbeErr != nil {
		cmd.Printf("Engine %s did not answer the probe; did you forget to compile it?\n", res.Name)
	} else if res.ProbeOutput != "" {
		cmd.Printf("%s\n", res.ProbeOutput)
	}
	return nil
}

func isBundle(path string) bool {
	for _, ext := range []string{".tar.gz", ".tgz", ".tar.xz", ".tar.bz2", ".zip"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
