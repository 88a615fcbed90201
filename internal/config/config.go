// Package config mirrors command-line flags to environment variables.
package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable: --session-timeout
// reads COOPSWEEP_SESSION_TIMEOUT.
const EnvPrefix = "COOPSWEEP"

// EnvName returns the environment variable backing a flag.
func EnvName(prefix, flag string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// Bind accepts underscores in flag names and fills every flag that was not
// set explicitly from its environment variable. Call it after all flags are
// defined and before they are parsed; parsed flags still win.
func Bind(fs *pflag.FlagSet, prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
	return v
}

// Logf returns a log.Printf that only writes while *verbose is true.
func Logf(verbose *bool) func(format string, args ...any) {
	return func(format string, args ...any) {
		if verbose != nil && *verbose {
			log.Printf(format, args...)
		}
	}
}
