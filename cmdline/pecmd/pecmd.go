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

	"github.com/sassoftware/pesign/cmdline/shared"
	"github.com/sassoftware/pesign/lib/atomicfile"
	"github.com/sassoftware/pesign/lib/authenticode"
)

var (
	argFile   string
	argOutput string
)

func readPE() (*authenticode.PEFile, error) {
	if argFile == "" {
		return nil, errors.New("--file is required")
	}
	blob, err := shared.ReadFile(argFile)
	if err != nil {
		return nil, err
	}
	return authenticode.NewPEFile(blob)
}

// writeOutput writes the result to --output, or back over --file
func writeOutput(data []byte) error {
	dest := argOutput
	if dest == "" {
		dest = argFile
	}
	return atomicfile.WriteFile(dest, data)
}
