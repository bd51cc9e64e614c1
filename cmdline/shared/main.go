//
// Copyright (c) SAS Institute Inc.
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
//

package shared

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sassoftware/pesign/config"
	"github.com/sassoftware/pesign/internal/logging"
)

var (
	ArgConfig      string
	CurrentConfig  *config.Config
	argVersion     bool
	argLogLevel    string
	argLogFile     string
	argMetricsFile string
)

var RootCmd = &cobra.Command{
	Use:               "pesign",
	Short:             "Sign Windows PE executables with Authenticode",
	PersistentPreRunE: preRun,
	RunE:              bailUnlessVersion,
	SilenceErrors:     true,
	SilenceUsage:      true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&ArgConfig, "config", "c", "", "Configuration file")
	RootCmd.PersistentFlags().BoolVar(&argVersion, "version", false, "Show version and exit")
	RootCmd.PersistentFlags().StringVar(&argLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&argLogFile, "log-file", "", "Write JSON logs to this file, or - for stderr")
	RootCmd.PersistentFlags().StringVar(&argMetricsFile, "metrics-file", "", "Write prometheus metrics to this file on exit")
}

func preRun(cmd *cobra.Command, args []string) error {
	if argVersion {
		fmt.Printf("pesign version %s (%s)\n", config.Version, config.Commit)
		os.Exit(0)
	}
	return setupLogging()
}

func bailUnlessVersion(cmd *cobra.Command, args []string) error {
	if !argVersion {
		return errors.New("expected a command")
	}
	return nil
}

// setupLogging configures logging from the command line, falling back to the
// configuration file once it is loaded
func setupLogging() error {
	conf := config.LoggingConfig{Level: argLogLevel, File: argLogFile}
	if CurrentConfig != nil {
		if conf.Level == "" {
			conf.Level = CurrentConfig.Logging.Level
		}
		if conf.File == "" {
			conf.File = CurrentConfig.Logging.File
		}
	}
	return logging.Setup(conf)
}

// Context returns the command's context carrying the global logger
func Context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return log.Logger.WithContext(ctx)
}

func writeMetrics() {
	if argMetricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(argMetricsFile, prometheus.DefaultGatherer); err != nil {
		log.Error().Err(err).Str("path", argMetricsFile).Msg("failed to write metrics")
	}
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	writeMetrics()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(ExitCode(err))
	}
}
