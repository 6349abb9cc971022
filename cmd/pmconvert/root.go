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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/thediveo/pseudomm/config"
	"github.com/thediveo/pseudomm/convert"
	"github.com/thediveo/pseudomm/driver"
	"github.com/thediveo/pseudomm/image"
	"github.com/thediveo/pseudomm/inherit"
	"github.com/thediveo/pseudomm/pool"
)

const configFlag = "config"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pmconvert",
		Short:        "converts CRIU checkpoints into pseudo address spaces",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.New()
			if err := config.Bind(v, cmd.Flags()); err != nil {
				return err
			}
			configPath, _ := cmd.Flags().GetString(configFlag)
			if err := config.ReadConfigFile(v, configPath); err != nil {
				return err
			}
			opts, err := config.Load(v)
			if err != nil {
				return err
			}
			level, _ := opts.Level()
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))
			return convertCheckpoint(opts, logger)
		},
	}
	cmd.Flags().String(configFlag, "", "configuration file (TOML, YAML, or JSON)")
	config.AddFlags(cmd.Flags())
	return cmd
}

// convertCheckpoint converts the checkpoint according to the passed options.
func convertCheckpoint(opts *config.Options, logger *slog.Logger) error {
	store := inherit.New()
	defer func() { _ = store.Close() }()
	for _, spec := range opts.InheritFds {
		if err := store.Add(spec); err != nil {
			return err
		}
	}
	drvfd, err := store.Lookup(inherit.DriverKey)
	if err != nil {
		return err
	}

	dir, err := image.Open(opts.ImagesDir, image.WithRoot(opts.Root), image.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	cfg := convert.Config{
		Images:     convert.DirImages(dir),
		Driver:     driver.New(drvfd, logger),
		Namespaces: convert.InheritedNamespaces(store, opts.PrivateProc, logger),
		Logger:     logger,
	}
	if opts.DaxDevice != "" {
		cfg.Local, err = pool.OpenLocal(opts.DaxDevice)
		cfg.PageOffset = opts.DaxPgoff
	} else {
		cfg.Remote, err = pool.DialRemote(opts.RemotePool)
	}
	if err != nil {
		return err
	}
	c, err := convert.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	logger.Info("pmconvert started",
		slog.Int("pid", os.Getpid()),
		slog.String("images-dir", opts.ImagesDir))
	if err := c.Run(); err != nil {
		logger.Error("conversion failed", slog.String("err", err.Error()))
		return fmt.Errorf("cannot convert checkpoint: %w", err)
	}
	logger.Info("pmconvert finished", slog.Uint64("pages", c.Committed()))
	return nil
}
