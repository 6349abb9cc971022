// Copyright 2025 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Option keys, which double as the names of command line flags.
const (
	ImagesDirKey   = "images-dir"
	RootKey        = "root"
	DaxDeviceKey   = "dax-device"
	DaxPgoffKey    = "dax-pgoff"
	RemotePoolKey  = "remote-pool"
	InheritFdKey   = "inherit-fd"
	PrivateProcKey = "private-proc"
	LogLevelKey    = "log-level"
)

// EnvPrefix is the prefix of environment variables setting options, such as
// PMCONVERT_IMAGES_DIR.
const EnvPrefix = "PMCONVERT"

// ErrOptions signals unusable options.
var ErrOptions = errors.New("invalid options")

// Options of a single conversion run.
type Options struct {
	ImagesDir   string   // checkpoint image directory
	Root        string   // root directory for resolving mapped files
	DaxDevice   string   // local pool device
	DaxPgoff    uint64   // page offset into the pool of the first commit
	RemotePool  string   // unix domain socket path of a remote pool server
	InheritFds  []string // inherited file descriptors in “fd[N]:key” form
	PrivateProc bool     // mount a private /proc when switching namespaces
	LogLevel    string   // one of debug, info, warn, error
}

// New returns a new viper instance with the option defaults set and
// environment variables enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(RootKey, "/")
	v.SetDefault(PrivateProcKey, true)
	v.SetDefault(LogLevelKey, "info")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags adds the command line flags for all options to the passed flag
// set.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(ImagesDirKey, "", "checkpoint image directory")
	flags.String(RootKey, "/", "root directory for resolving mapped files")
	flags.String(DaxDeviceKey, "", "local memory pool (DAX) device")
	flags.Uint64(DaxPgoffKey, 0, "page offset into the pool of the first page committed")
	flags.String(RemotePoolKey, "", "unix domain socket path of a remote memory pool server")
	flags.StringArray(InheritFdKey, nil, "inherited file descriptor in the form fd[N]:key")
	flags.Bool(PrivateProcKey, true, "mount a private /proc when switching into container namespaces")
	flags.String(LogLevelKey, "info", "log level: debug, info, warn, error")
}

// Bind the passed flag set to the viper instance.
func Bind(v *viper.Viper, flags *pflag.FlagSet) error {
	return v.BindPFlags(flags)
}

// ReadConfigFile reads the configuration file at the specified path, if any.
// The file's format is derived from its extension, such as .toml or .yaml.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot read config file: %w", err)
	}
	return nil
}

// Load returns the validated options from the passed viper instance.
func Load(v *viper.Viper) (*Options, error) {
	o := &Options{
		ImagesDir:   v.GetString(ImagesDirKey),
		Root:        v.GetString(RootKey),
		DaxDevice:   v.GetString(DaxDeviceKey),
		DaxPgoff:    v.GetUint64(DaxPgoffKey),
		RemotePool:  v.GetString(RemotePoolKey),
		InheritFds:  v.GetStringSlice(InheritFdKey),
		PrivateProc: v.GetBool(PrivateProcKey),
		LogLevel:    v.GetString(LogLevelKey),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate the options, rejecting missing image directories as well as
// configuring none or both of the local and remote pools.
func (o *Options) Validate() error {
	if o.ImagesDir == "" {
		return fmt.Errorf("%w: no %s", ErrOptions, ImagesDirKey)
	}
	switch {
	case o.DaxDevice != "" && o.RemotePool != "":
		return fmt.Errorf("%w: both %s and %s specified", ErrOptions, DaxDeviceKey, RemotePoolKey)
	case o.DaxDevice == "" && o.RemotePool == "":
		return fmt.Errorf("%w: either %s or %s required", ErrOptions, DaxDeviceKey, RemotePoolKey)
	}
	if o.RemotePool != "" && o.DaxPgoff != 0 {
		return fmt.Errorf("%w: %s only applies to %s", ErrOptions, DaxPgoffKey, DaxDeviceKey)
	}
	if _, err := o.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level corresponding to the configured log level.
func (o *Options) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return level, fmt.Errorf("%w: %s %q", ErrOptions, LogLevelKey, o.LogLevel)
	}
	return level, nil
}
