// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command vfsmuxd runs the VFS multiplexer as a standalone service: one
// Unix-domain listener for back-ends to register against, and one for
// clients to issue path and descriptor operations against.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
	log     = logrus.New()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("vfsmuxd exited with error")
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vfsmuxd",
		Short: "Virtual file system multiplexer daemon",
		Long: `vfsmuxd brokers a single unified file namespace across a pluggable
set of file-system back-end processes: it resolves client path and
descriptor operations, serializes access per node, and round-trips data
requests to the back-end that owns each node.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	def := defaultConfig()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.String("client-addr", def.ClientAddr, "unix socket path clients connect to")
	flags.String("backend-addr", def.BackendAddr, "unix socket path back-ends connect to")
	flags.Int("descriptor-table-size", def.DescriptorTableSize, "descriptor slots per client connection")
	flags.String("mtab-path", def.MtabPath, "mount table snapshot path, used across restarts")
	flags.Int("mtab-load-timeout-seconds", def.MtabLoadTimeout, "overall back-end wait when replaying the mtab snapshot at startup")
	flags.String("log-level", def.LogLevel, "logrus level: trace, debug, info, warn, error")

	bindErr := v.BindPFlags(flags)
	v.SetEnvPrefix("vfsmuxd")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				log.WithError(err).Warn("could not read config file, continuing with flags/env only")
			}
		}
	})

	if bindErr != nil {
		cmd.RunE = func(*cobra.Command, []string) error { return bindErr }
	}

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	if lvl, lerr := logrus.ParseLevel(cfg.LogLevel); lerr == nil {
		log.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := newServer(cfg, log)
	return srv.Run(ctx)
}
