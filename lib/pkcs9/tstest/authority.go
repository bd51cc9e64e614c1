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

// Package tstest provides an in-process RFC 3161 timestamp authority for
// exercising timestamp clients and signers in tests.
package tstest

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/sassoftware/pesign/lib/pkcs7"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/x509tools"
)

var testPolicy = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 99999, 1}

// Authority issues timestamp tokens signed by a throwaway ECDSA key
type Authority struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate

	// Status is returned in every response. Tokens are issued for any value
	// up to StatusGrantedWithMods, so out-of-range values still carry one.
	Status int
	// OmitToken drops the token from granted responses
	OmitToken bool
	// DropNonce issues tokens without echoing the request nonce
	DropNonce bool

	mu       sync.Mutex
	requests int
}

// New creates an authority with a fresh self-signed certificate
func New() (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: x509tools.MakeSerial(),
		Subject:      pkix.Name{CommonName: "Test Timestamp Authority"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Authority{Key: key, Cert: cert}, nil
}

// Requests returns the number of requests served so far
func (a *Authority) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// Timestamp implements pkcs9.Timestamper
func (a *Authority) Timestamp(ctx context.Context, reqDER []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := pkcs9.ParseRequest(reqDER)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.requests++
	serial := big.NewInt(int64(a.requests))
	a.mu.Unlock()
	resp := pkcs9.TimeStampResp{Status: pkcs9.PKIStatusInfo{Status: a.Status}}
	if a.Status <= pkcs9.StatusGrantedWithMods && !a.OmitToken {
		token, err := a.issue(req, serial)
		if err != nil {
			return nil, err
		}
		resp.TimeStampToken = asn1.RawValue{FullBytes: token}
	}
	return asn1.Marshal(resp)
}

func (a *Authority) issue(req *pkcs9.TimeStampReq, serial *big.Int) ([]byte, error) {
	info := pkcs9.TSTInfo{
		Version:        1,
		Policy:         testPolicy,
		MessageImprint: req.MessageImprint,
		SerialNumber:   serial,
		GenTime:        time.Now().UTC().Truncate(time.Second),
	}
	if !a.DropNonce {
		info.Nonce = req.Nonce
	}
	infoDER, err := asn1.Marshal(info)
	if err != nil {
		return nil, err
	}
	cinfo, err := pkcs7.NewContentInfo(pkcs9.OidTSTInfo, infoDER)
	if err != nil {
		return nil, err
	}
	contentDigest := sha256.Sum256(infoDER)
	var attrs pkcs7.AttributeList
	if err := attrs.Add(pkcs7.OidAttributeContentType, pkcs9.OidTSTInfo); err != nil {
		return nil, err
	}
	if err := attrs.Add(pkcs7.OidAttributeMessageDigest, contentDigest[:]); err != nil {
		return nil, err
	}
	attrBytes, err := attrs.Bytes()
	if err != nil {
		return nil, err
	}
	attrDigest := sha256.Sum256(attrBytes)
	sig, err := a.Key.Sign(rand.Reader, attrDigest[:], crypto.SHA256)
	if err != nil {
		return nil, err
	}
	digestAlg, _ := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	pkeyAlg, _ := x509tools.PkixPublicKeyAlgorithm(&a.Key.PublicKey)
	psd := pkcs7.ContentInfoSignedData{
		ContentType: pkcs7.OidSignedData,
		Content: pkcs7.SignedData{
			Version:                    1,
			DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{digestAlg},
			ContentInfo:                cinfo,
			Certificates:               pkcs7.MarshalCertificates([][]byte{a.Cert.Raw}),
			SignerInfos: []pkcs7.SignerInfo{{
				Version: 1,
				IssuerAndSerialNumber: pkcs7.IssuerAndSerial{
					IssuerName:   asn1.RawValue{FullBytes: a.Cert.RawIssuer},
					SerialNumber: a.Cert.SerialNumber,
				},
				DigestAlgorithm:           digestAlg,
				AuthenticatedAttributes:   attrs,
				DigestEncryptionAlgorithm: pkeyAlg,
				EncryptedDigest:           sig,
			}},
		},
	}
	return psd.Marshal()
}

// ServeHTTP answers RFC 3161 requests posted over HTTP
func (a *Authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/timestamp-query" {
		http.Error(w, "expected a timestamp query", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := a.Timestamp(r.Context(), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/timestamp-reply")
	w.Write(resp)
}
