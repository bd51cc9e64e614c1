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

import "fmt"

// FormatError is returned when a file is not recognized as the expected
// format, or when an embedded signature record is malformed.
type FormatError struct {
	Type   string
	Reason string
}

func (e FormatError) Error() string {
	if e.Type == "" {
		return "invalid file: " + e.Reason
	}
	return fmt.Sprintf("invalid %s file: %s", e.Type, e.Reason)
}

// LayoutError is returned when a structure that must stay at the end of the
// file would have to be moved.
type LayoutError struct {
	Reason string
}

func (e LayoutError) Error() string {
	return "unsupported file layout: " + e.Reason
}

// ConflictError is returned when the requested signing options don't fit
// the current signature state of the file.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	return "signature conflict: " + e.Reason
}

// CapabilityError is returned when an operation needs something the key
// backend does not provide.
type CapabilityError struct {
	Capability string
}

func (e CapabilityError) Error() string {
	return "signing backend does not support " + e.Capability
}

// TimestampError is returned when the timestamp authority refused the
// request or its response had no usable token.
type TimestampError struct {
	Reason string
	Err    error
}

func (e TimestampError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timestamp failed: %s: %s", e.Reason, e.Err)
	}
	return "timestamp failed: " + e.Reason
}

func (e TimestampError) Unwrap() error {
	return e.Err
}

type KeyNotFoundError struct {
	Name string
}

func (e KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found in configuration", e.Name)
}

type PinIncorrectError struct{}

func (PinIncorrectError) Error() string {
	return "incorrect password"
}
