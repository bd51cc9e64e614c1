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

package certloader

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sassoftware/pesign/lib/pkcs7"
	"github.com/sassoftware/pesign/lib/x509tools"
)

const asn1Magic = 0x30 // weak but good enough?
var pkcs7SignedData = []byte{0x06, 0x09, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x07, 0x02}

// Certificate is a signing key along with its certificate chain
type Certificate struct {
	Leaf         *x509.Certificate
	Certificates []*x509.Certificate
	PrivateKey   crypto.PrivateKey
}

// Chain returns the leaf followed by its intermediates, omitting any root CA
func (s *Certificate) Chain() []*x509.Certificate {
	var chain []*x509.Certificate
	for i, cert := range s.Certificates {
		if i > 0 && bytes.Equal(cert.RawIssuer, cert.RawSubject) {
			// omit root CA
			continue
		}
		chain = append(chain, cert)
	}
	return chain
}

func (s *Certificate) Issuer() *x509.Certificate {
	for _, cert := range s.Certificates {
		if bytes.Equal(cert.RawSubject, s.Leaf.RawIssuer) {
			return cert
		}
	}
	return nil
}

func (s *Certificate) Signer() (crypto.Signer, error) {
	signer, ok := s.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key of type %T cannot sign", s.PrivateKey)
	}
	return signer, nil
}

// Parse a private key from a blob of PEM or DER data
func ParsePrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	if len(pemData) >= 1 && pemData[0] == asn1Magic {
		// already DER form
		return parsePrivateKey(pemData)
	}
	for {
		var keyBlock *pem.Block
		keyBlock, pemData = pem.Decode(pemData)
		if keyBlock == nil {
			return nil, errors.New("failed to find any private keys in PEM data")
		} else if keyBlock.Type == "PRIVATE KEY" || strings.HasSuffix(keyBlock.Type, " PRIVATE KEY") {
			return parsePrivateKey(keyBlock.Bytes)
		}
	}
}

// Parse a private key from a DER block
// See crypto/tls.parsePrivateKey
func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch key := key.(type) {
		case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
			return key, nil
		default:
			return nil, errors.New("found unknown private key type in PKCS#8 wrapping")
		}
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("failed to parse private key")
}

// Parse a list of certificates, PEM or DER, X509 or PKCS#7
func ParseCertificates(pemData []byte) (*Certificate, error) {
	if len(pemData) >= 1 && pemData[0] == asn1Magic {
		// already in DER form
		return parseCertificates(pemData)
	}
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		} else if block.Type == "CERTIFICATE" || block.Type == "PKCS7" {
			newcerts, err := parseCertificates(block.Bytes)
			if err != nil {
				return nil, err
			}
			certs = append(certs, newcerts.Certificates...)
		}
	}
	if len(certs) == 0 {
		return nil, ErrNoCerts
	}
	return &Certificate{Leaf: certs[0], Certificates: certs}, nil
}

// Parse certificates from DER
func parseCertificates(der []byte) (*Certificate, error) {
	var certs []*x509.Certificate
	var err error
	if bytes.Contains(der[:min(32, len(der))], pkcs7SignedData) {
		certs, err = pkcs7.ParseCertificates(der)
	} else {
		certs, err = x509.ParseCertificates(der)
	}
	if err != nil {
		return nil, err
	} else if len(certs) == 0 {
		return nil, ErrNoCerts
	}
	return &Certificate{Leaf: certs[0], Certificates: certs}, nil
}

// LoadX509KeyPair extends the tls version of this function by parsing p7b files
func LoadX509KeyPair(certFile, keyFile string) (*Certificate, error) {
	keyblob, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}
	certblob, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey(keyblob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyFile, err)
	}
	cert, err := ParseCertificates(certblob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", certFile, err)
	}
	if !x509tools.SameKey(cert.Leaf.PublicKey, key) {
		return nil, errors.New("private key does not match certificate")
	}
	cert.PrivateKey = key
	return cert, nil
}

type errNoCerts struct{}

func (errNoCerts) Error() string {
	return "failed to find any certificates in PEM file"
}

var ErrNoCerts = errNoCerts{}
