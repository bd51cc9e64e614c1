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
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"iter"

	"github.com/sassoftware/pesign/lib/certloader"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/x509tools"
)

// CertBackend signs with a private key held in memory
type CertBackend struct {
	signer    crypto.Signer
	hash      crypto.Hash
	leaf      []byte
	chain     [][]byte
	digestAlg pkix.AlgorithmIdentifier
	sigAlg    pkix.AlgorithmIdentifier
}

var _ IntermediateProvider = (*CertBackend)(nil)

// NewCertBackend creates a backend from a loaded key and certificate chain
func NewCertBackend(cert *certloader.Certificate, hash crypto.Hash) (*CertBackend, error) {
	if cert.Leaf == nil {
		return nil, errors.New("no signing certificate")
	}
	signer, err := cert.Signer()
	if err != nil {
		return nil, err
	}
	if !x509tools.SameKey(cert.Leaf.PublicKey, signer) {
		return nil, errors.New("private key does not match certificate")
	}
	digestAlg, ok := x509tools.PkixDigestAlgorithm(hash)
	if !ok {
		return nil, fmt.Errorf("unsupported digest algorithm %s", hash)
	}
	sigAlg, ok := x509tools.PkixPublicKeyAlgorithm(signer.Public())
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", signer.Public())
	}
	b := &CertBackend{
		signer:    signer,
		hash:      hash,
		leaf:      cert.Leaf.Raw,
		digestAlg: digestAlg,
		sigAlg:    sigAlg,
	}
	for _, c := range cert.Chain() {
		if !bytes.Equal(c.Raw, cert.Leaf.Raw) {
			b.chain = append(b.chain, c.Raw)
		}
	}
	return b, nil
}

func (b *CertBackend) DigestAlgorithm() pkix.AlgorithmIdentifier {
	return b.digestAlg
}

func (b *CertBackend) SignatureAlgorithm() pkix.AlgorithmIdentifier {
	return b.sigAlg
}

func (b *CertBackend) Certificate() []byte {
	return b.leaf
}

func (b *CertBackend) Intermediates() [][]byte {
	return b.chain
}

func (b *CertBackend) Digest(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error) {
	d := b.hash.New()
	for chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.Write(chunk)
	}
	return d.Sum(nil), nil
}

func (b *CertBackend) Sign(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error) {
	digest, err := b.Digest(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return b.signer.Sign(rand.Reader, digest, b.hash)
}

// TimestampingBackend is a CertBackend that also timestamps its signatures
type TimestampingBackend struct {
	*CertBackend
	pkcs9.Timestamper
}

// WithTimestamper returns a backend that timestamps signatures using ts. If
// ts is nil the backend is returned unchanged.
func (b *CertBackend) WithTimestamper(ts pkcs9.Timestamper) Backend {
	if ts == nil {
		return b
	}
	return TimestampingBackend{CertBackend: b, Timestamper: ts}
}
