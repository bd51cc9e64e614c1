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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestAlgorithm(t *testing.T) {
	alg, ok := PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	der, err := asn1.Marshal(alg)
	require.NoError(t, err)
	// NULL parameters must be present
	assert.Equal(t, []byte{0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00}, der)

	hash, ok := PkixDigestToHash(alg)
	assert.True(t, ok)
	assert.Equal(t, crypto.SHA256, hash)

	_, ok = PkixDigestAlgorithm(crypto.MD5)
	assert.False(t, ok)
	_, ok = PkixDigestToHash(pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 3}})
	assert.False(t, ok)
}

func TestPublicKeyAlgorithm(t *testing.T) {
	alg, ok := PkixPublicKeyAlgorithm(&rsa.PublicKey{})
	assert.True(t, ok)
	assert.Equal(t, OidPublicKeyRSA, alg.Algorithm)
	alg, ok = PkixPublicKeyAlgorithm(&ecdsa.PublicKey{})
	assert.True(t, ok)
	assert.Equal(t, OidPublicKeyECDSA, alg.Algorithm)
	_, ok = PkixPublicKeyAlgorithm(ed25519.PublicKey{})
	assert.False(t, ok)
}

func TestHashByName(t *testing.T) {
	assert.Equal(t, crypto.SHA256, HashByName("SHA-256"))
	assert.Equal(t, crypto.SHA256, HashByName("sha256"))
	assert.Equal(t, crypto.SHA1, HashByName("SHA1"))
	assert.Equal(t, crypto.Hash(0), HashByName("md5"))
	assert.Equal(t, "SHA384", HashName(crypto.SHA384))
}

func TestSignatureAlgorithm(t *testing.T) {
	assert.Equal(t, x509.SHA256WithRSA, SignatureAlgorithm(&rsa.PublicKey{}, crypto.SHA256))
	assert.Equal(t, x509.SHA512WithRSA, SignatureAlgorithm(&rsa.PublicKey{}, crypto.SHA512))
	assert.Equal(t, x509.ECDSAWithSHA384, SignatureAlgorithm(&ecdsa.PublicKey{Curve: elliptic.P384()}, crypto.SHA384))
	assert.Equal(t, x509.UnknownSignatureAlgorithm, SignatureAlgorithm(ed25519.PublicKey{}, crypto.SHA256))
}

func TestSameKey(t *testing.T) {
	k1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k2, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	assert.True(t, SameKey(k1, &k1.PublicKey))
	assert.True(t, SameKey(&k1.PublicKey, k1))
	assert.False(t, SameKey(k1, k2))
}

func TestMakeSerial(t *testing.T) {
	a, b := MakeSerial(), MakeSerial()
	require.NotNil(t, a)
	assert.Equal(t, 1, a.Sign())
	assert.NotEqual(t, 0, a.Cmp(b))
}

func TestNames(t *testing.T) {
	n := pkix.Name{
		CommonName:   "foo/bar",
		Organization: []string{"ham"},
		Country:      []string{"US"},
		ExtraNames: []pkix.AttributeTypeAndValue{
			{Type: asn1.ObjectIdentifier{1, 2, 3, 4}, Value: "5678"},
		},
	}
	name, err := asn1.Marshal(n.ToRDNSequence())
	require.NoError(t, err)
	assert.Equal(t, `/C=US/O=ham/CN=foo\/bar/1.2.3.4=5678/`, FormatPkixName(name))
	assert.Equal(t, InvalidName, FormatPkixName([]byte{1, 2, 3}))
}

func TestBMPName(t *testing.T) {
	n := pkix.RDNSequence{
		pkix.RelativeDistinguishedNameSET{pkix.AttributeTypeAndValue{
			Type: asn1.ObjectIdentifier{2, 5, 4, 10},
			Value: asn1.RawValue{
				Tag:   asn1.TagBMPString,
				Bytes: []byte{0x27, 0x14},
			},
		}},
	}
	blob, err := asn1.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `/O=✔/`, FormatPkixName(blob))
}
