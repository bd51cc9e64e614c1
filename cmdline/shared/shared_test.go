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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sassoftware/pesign/signers/sigerrors"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(sigerrors.LayoutError{Reason: "x"}))
	assert.Equal(t, 2, ExitCode(sigerrors.ConflictError{Reason: "x"}))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("app.exe: %w", sigerrors.ConflictError{Reason: "x"})))
}

func TestGetDigest(t *testing.T) {
	t.Cleanup(func() { ArgDigest = "" })
	ArgDigest = ""
	hash, err := GetDigest()
	assert.NoError(t, err)
	assert.Zero(t, hash)
	ArgDigest = "sha-384"
	hash, err = GetDigest()
	assert.NoError(t, err)
	assert.Equal(t, "SHA-384", hash.String())
	ArgDigest = "whirlpool"
	_, err = GetDigest()
	assert.Error(t, err)
}
