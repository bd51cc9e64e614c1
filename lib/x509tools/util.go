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
	"crypto/rand"
	"crypto/x509"
	"math/big"
)

// MakeSerial returns a random positive integer suitable for use as a nonce or
// certificate serial number
func MakeSerial() *big.Int {
	blob := make([]byte, 12)
	if n, err := rand.Reader.Read(blob); err != nil || n != len(blob) {
		return nil
	}
	return new(big.Int).SetBytes(blob)
}

type publicKeyEqual interface {
	Equal(crypto.PublicKey) bool
}

// SameKey returns true if both arguments are the same key. Either argument may
// be a public or private key.
func SameKey(pub1, pub2 interface{}) bool {
	if priv, ok := pub1.(crypto.Signer); ok {
		pub1 = priv.Public()
	}
	if priv, ok := pub2.(crypto.Signer); ok {
		pub2 = priv.Public()
	}
	eq, ok := pub1.(publicKeyEqual)
	if !ok {
		return false
	}
	return eq.Equal(pub2)
}

// SignatureAlgorithm picks the x509 signature algorithm for a public key and digest
func SignatureAlgorithm(pub crypto.PublicKey, hash crypto.Hash) x509.SignatureAlgorithm {
	alg, _ := PkixPublicKeyAlgorithm(pub)
	switch {
	case alg.Algorithm.Equal(OidPublicKeyRSA):
		switch hash {
		case crypto.SHA1:
			return x509.SHA1WithRSA
		case crypto.SHA384:
			return x509.SHA384WithRSA
		case crypto.SHA512:
			return x509.SHA512WithRSA
		default:
			return x509.SHA256WithRSA
		}
	case alg.Algorithm.Equal(OidPublicKeyECDSA):
		switch hash {
		case crypto.SHA1:
			return x509.ECDSAWithSHA1
		case crypto.SHA384:
			return x509.ECDSAWithSHA384
		case crypto.SHA512:
			return x509.ECDSAWithSHA512
		default:
			return x509.ECDSAWithSHA256
		}
	}
	return x509.UnknownSignatureAlgorithm
}
