// Package config loads command line configuration from flags, a config file and the environment.
package config

import (
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// LoadConfigFile merges cfgFile into v, or $HOME/.<name>.yaml when cfgFile is empty,
// and enables environment variables prefixed with envPrefix.
// A missing default file is not an error; a missing explicit file is.
func LoadConfigFile(v *viper.Viper, cfgFile string, name string, envPrefix string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return errors.WithMessage(err, "error getting user home directory")
		}
		v.AddConfigPath(home)
		v.SetConfigName("." + name)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			// Only returned when looking for the default file.
		default:
			return errors.WithMessagef(err, "error reading config file %s", v.ConfigFileUsed())
		}
	}
	return nil
}

// Unmarshal decodes v into out using CustomHooks and then checks its `validate` tags.
func Unmarshal(v *viper.Viper, out interface{}) error {
	if err := v.Unmarshal(out, CustomHooks...); err != nil {
		return errors.WithStack(err)
	}
	return Validate(out)
}
