package property

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mlsafety/cegarete/pkg/errors"
)

// Load resolves a property reference. A reference ending in .yaml/.yml or
// .tengo is read from disk and parsed by the matching loader; anything else
// is looked up as a builtin property name.
func Load(ref string, ctx ScriptContext) (Spec, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrPropertyParse, "reading %s: %v", ref, err)
		}
		return FromYAML(data)
	case ".tengo":
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrPropertyScript, "reading %s: %v", ref, err)
		}
		return FromScript(data, ctx)
	default:
		return Builtin(ref)
	}
}
