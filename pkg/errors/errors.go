package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")

	// Network errors.
	ErrNetworkStructure  = fmt.Errorf("inconsistent network structure")
	ErrUnknownNeuron     = fmt.Errorf("unknown neuron")
	ErrUnknownActivation = fmt.Errorf("unknown activation function")
	ErrNNetFormat        = fmt.Errorf("malformed nnet file")

	// Abstraction and refinement errors.
	ErrStepTooSmall         = fmt.Errorf("abstraction step needs at least 2 neurons")
	ErrMixedNeuronTypes     = fmt.Errorf("abstraction step mixes neuron types")
	ErrUnclassifiedNeuron   = fmt.Errorf("neuron has no sign/scaling classification")
	ErrLayerNotAbstractable = fmt.Errorf("layer cannot be abstracted")
	ErrNotAbstracted        = fmt.Errorf("neuron is not an abstracted neuron")

	// Property errors.
	ErrPropertyParse       = fmt.Errorf("failed to parse property")
	ErrPropertyScript      = fmt.Errorf("property script error")
	ErrUnknownProperty     = fmt.Errorf("unknown property")
	ErrUnsupportedProperty = fmt.Errorf("unsupported property type")

	// Verifier errors.
	ErrVerifierQuery   = fmt.Errorf("verifier query failed")
	ErrVerifierOutput  = fmt.Errorf("could not parse verifier output")
	ErrVerifierMissing = fmt.Errorf("verifier engine not available")

	// Engine installation errors.
	ErrEngineNotInstalled = fmt.Errorf("engine is not installed")
	ErrNotEngineDir       = fmt.Errorf("not a verifier engine directory")
	ErrEngineInstall      = fmt.Errorf("failed to install engine")
	ErrEngineVersion      = fmt.Errorf("engine version does not satisfy constraint")

	// Cache errors.
	ErrCacheDirectory = fmt.Errorf("cache directory cannot be empty")

	// Generic errors.
	ErrInvalidPath      = fmt.Errorf("invalid path")
	ErrValidation       = fmt.Errorf("validation failed")
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrChecksumMismatch = fmt.Errorf("checksum mismatch")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
