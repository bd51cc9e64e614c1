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

package sigerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("signing foo.exe: %w", ConflictError{Reason: "signature exists"})
	var conflict ConflictError
	assert.True(t, errors.As(wrapped, &conflict))
	assert.Equal(t, "signature exists", conflict.Reason)
	var layout LayoutError
	assert.False(t, errors.As(wrapped, &layout))
}

func TestTimestampUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := TimestampError{Reason: "requesting token", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "timestamp failed: requesting token: connection refused", err.Error())
	assert.Equal(t, "timestamp failed: no token", TimestampError{Reason: "no token"}.Error())
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "invalid PE file: missing MZ signature", FormatError{Type: "PE", Reason: "missing MZ signature"}.Error())
	assert.Equal(t, "invalid file: short read", FormatError{Reason: "short read"}.Error())
	assert.Equal(t, "signing backend does not support timestamping", CapabilityError{Capability: "timestamping"}.Error())
	assert.Equal(t, `key "release" not found in configuration`, KeyNotFoundError{Name: "release"}.Error())
}
