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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sassoftware/pesign/config"
	"github.com/sassoftware/pesign/signers/sigerrors"
)

func InitConfig() error {
	if CurrentConfig != nil {
		return nil
	}
	usedDefault := false
	if ArgConfig == "" {
		ArgConfig = config.DefaultConfig()
		if ArgConfig == "" {
			return errors.New("--config not specified")
		}
		usedDefault = true
	}
	conf, err := config.ReadFile(ArgConfig)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && usedDefault {
			return fmt.Errorf("--config not specified and default config at %s does not exist", ArgConfig)
		}
		return err
	}
	CurrentConfig = conf
	if conf.Logging != (config.LoggingConfig{}) {
		return setupLogging()
	}
	return nil
}

// ReadFile reads the whole input file, or stdin if path is "-"
func ReadFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// ExitCode maps an error to the process exit status. An already-signed
// input gets its own status so scripts can tell it apart.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.As(err, new(sigerrors.ConflictError)) {
		return 2
	}
	return 1
}

func Fail(err error) error {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(ExitCode(err))
	}
	return err
}
