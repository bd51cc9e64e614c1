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

package pecmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sassoftware/pesign/cmdline/shared"
	"github.com/sassoftware/pesign/internal/signinit"
	"github.com/sassoftware/pesign/lib/authenticode"
)

var SignCmd = &cobra.Command{
	Use:   "sign-pe",
	Short: "Sign a PE executable with Authenticode",
	RunE:  signCmd,
}

var (
	argKeyName     string
	argReplace     bool
	argNest        bool
	argTimestamp   bool
	argNoTimestamp bool
)

func init() {
	shared.RootCmd.AddCommand(SignCmd)
	SignCmd.Flags().StringVarP(&argKeyName, "key", "k", "", "Name of key section in config file to use")
	SignCmd.Flags().StringVarP(&argFile, "file", "f", "", "Input file to sign")
	SignCmd.Flags().StringVarP(&argOutput, "output", "o", "", "Output file. Defaults to overwriting the input file")
	SignCmd.Flags().BoolVar(&argReplace, "replace", false, "Replace any existing signature")
	SignCmd.Flags().BoolVar(&argNest, "nest", false, "Append to an existing signature as a nested signature")
	SignCmd.Flags().BoolVar(&argTimestamp, "timestamp", false, "Fail unless the signature can be timestamped")
	SignCmd.Flags().BoolVar(&argNoTimestamp, "no-timestamp", false, "Do not timestamp, even if the key is configured to")
	shared.AddDigestFlag(SignCmd)
}

func signCmd(cmd *cobra.Command, args []string) error {
	if argKeyName == "" || argFile == "" {
		return errors.New("--key and --file are required")
	}
	if argTimestamp && argNoTimestamp {
		return errors.New("--timestamp and --no-timestamp are mutually exclusive")
	}
	if err := shared.InitConfig(); err != nil {
		return err
	}
	hash, err := shared.GetDigest()
	if err != nil {
		return err
	}
	ctx := shared.Context(cmd)
	pe, err := readPE()
	if err != nil {
		return err
	}
	backend, err := signinit.Init(shared.CurrentConfig, argKeyName, signinit.Options{
		NoTimestamp: argNoTimestamp,
		Hash:        hash,
	})
	if err != nil {
		return err
	}
	ctx = zerolog.Ctx(ctx).With().Str("file", argFile).Str("key", argKeyName).Logger().WithContext(ctx)
	signed, err := authenticode.NewSigner(backend).Sign(ctx, pe, authenticode.SignOptions{
		Replace:          argReplace,
		Nest:             argNest,
		RequireTimestamp: argTimestamp,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", argFile, err)
	}
	if err := writeOutput(signed); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Signed %s\n", argFile)
	return nil
}
