package config

import (
	"os"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Default returns the embedded configuration.
func Default() *Configuration {
	var out Configuration
	// The embedded file is validated by tests; a failure here is a
	// packaging bug.
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Load reads a configuration file, filling unset keys from the
// defaults. A missing file yields the defaults unchanged.
func Load(fs afero.Fs, path string) (*Configuration, error) {
	out := Default()

	contents, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(contents, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
