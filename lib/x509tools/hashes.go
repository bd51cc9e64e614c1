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

package x509tools

import (
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"strings"
)

var hashNames = map[string]crypto.Hash{
	"sha1":   crypto.SHA1,
	"sha256": crypto.SHA256,
	"sha384": crypto.SHA384,
	"sha512": crypto.SHA512,
}

// HashByName looks up a digest by name, ignoring case and dashes. Returns 0 if
// the digest is unknown or not linked into the binary.
func HashByName(name string) crypto.Hash {
	name = strings.ToLower(strings.ReplaceAll(name, "-", ""))
	hash := hashNames[name]
	if hash == 0 || !hash.Available() {
		return 0
	}
	return hash
}

// HashName returns the canonical name of a supported digest
func HashName(hash crypto.Hash) string {
	for name, h := range hashNames {
		if h == hash {
			return strings.ToUpper(name)
		}
	}
	return hash.String()
}
