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

package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/sassoftware/pesign/config"
)

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00" // RFC3339 with 3 decimal places, padded

var stderr io.Writer = os.Stderr

// Setup initializes the global zerolog logger from configuration. With no
// file configured, output goes to stderr as text on a terminal or JSON
// otherwise. A file of "-" forces JSON on stderr.
func Setup(conf config.LoggingConfig) error {
	zerolog.TimeFieldFormat = rfc3339Milli
	zerolog.DurationFieldInteger = true
	logger := zerolog.New(stderr).With().Timestamp().Logger()
	switch conf.File {
	case "-":
		// write JSON to stderr
	case "":
		if isTerminal(stderr) {
			logger = logger.Output(zerolog.ConsoleWriter{
				Out:        stderr,
				TimeFormat: "15:04:05",
			})
		}
	default:
		// write JSON to file
		w, err := NewReopenWriter(conf.File)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		logger = logger.Output(w)
	}
	levelName := conf.Level
	if levelName == "" {
		levelName = zerolog.InfoLevel.String()
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	log.Logger = logger.Level(level)
	// pass stdlib logger through
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
