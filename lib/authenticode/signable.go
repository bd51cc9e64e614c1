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

package authenticode

import (
	"context"
	"crypto/x509/pkix"
	"iter"
)

// DigestFunc consumes a sequence of byte slices in a single pass and returns
// their digest
type DigestFunc func(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error)

// Signable is a container format that can carry an Authenticode signature
type Signable interface {
	// GetIndirectData digests the container and returns the structure to be signed
	GetIndirectData(ctx context.Context, digest DigestFunc, digestAlg pkix.AlgorithmIdentifier) (*SpcIndirectDataContent, error)
	// GetSignature returns the DER PKCS#7 signature currently embedded. The
	// result matches what SetSignature was given when that was a single DER
	// element; other payloads come back with their alignment padding.
	GetSignature() ([]byte, error)
	// SetSignature embeds a DER PKCS#7 signature, replacing any existing one
	SetSignature(der []byte) error
	// Bytes returns the current contents of the container
	Bytes() []byte
}

// SignatureHolder is implemented by containers that can report and remove
// an existing signature
type SignatureHolder interface {
	HasSignature() bool
	EraseSignature()
}

// Backend holds the signing key and certificate
type Backend interface {
	DigestAlgorithm() pkix.AlgorithmIdentifier
	SignatureAlgorithm() pkix.AlgorithmIdentifier
	// Certificate returns the DER signer certificate
	Certificate() []byte
	Digest(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error)
	// Sign digests the chunks and signs the result
	Sign(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error)
}

// IntermediateProvider is implemented by backends that have intermediate
// certificates to include in the signature
type IntermediateProvider interface {
	Intermediates() [][]byte
}

var (
	_ Signable        = (*PEFile)(nil)
	_ SignatureHolder = (*PEFile)(nil)
)

func single(d []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		yield(d)
	}
}
