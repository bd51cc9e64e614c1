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

	"github.com/spf13/cobra"

	"github.com/sassoftware/pesign/cmdline/shared"
)

var ChecksumCmd = &cobra.Command{
	Use:   "pe-checksum",
	Short: "Check or fix the checksum in a PE executable's optional header",
	RunE:  checksumCmd,
}

var argFix bool

func init() {
	shared.RootCmd.AddCommand(ChecksumCmd)
	ChecksumCmd.Flags().StringVarP(&argFile, "file", "f", "", "Input file")
	ChecksumCmd.Flags().StringVarP(&argOutput, "output", "o", "", "Output file for --fix. Defaults to overwriting the input file")
	ChecksumCmd.Flags().BoolVar(&argFix, "fix", false, "Rewrite the stored checksum if it is wrong")
}

func checksumCmd(cmd *cobra.Command, args []string) error {
	pe, err := readPE()
	if err != nil {
		return err
	}
	stored, computed := pe.Checksum(), pe.CalculateChecksum()
	fmt.Fprintf(cmd.OutOrStdout(), "stored=%08x computed=%08x\n", stored, computed)
	if stored == computed {
		return nil
	} else if !argFix {
		return errors.New("checksum mismatch")
	}
	pe.UpdateChecksum()
	return writeOutput(pe.Bytes())
}
