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

package pkcs7

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
)

type contentInfo2 struct {
	ContentType asn1.ObjectIdentifier
	Value       asn1.RawValue `asn1:"optional"`
}

// NewContentInfo creates a ContentInfo wrapping the given value. A nil value
// produces a detached ContentInfo with only the content type.
func NewContentInfo(contentType asn1.ObjectIdentifier, data interface{}) (ci ContentInfo, err error) {
	if data == nil {
		return ContentInfo{ContentType: contentType}, nil
	}
	encoded, err := asn1.Marshal(data)
	if err != nil {
		return ci, err
	}
	ci.Raw, err = asn1.Marshal(contentInfo2{
		ContentType: contentType,
		Value: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      encoded,
		},
	})
	if err != nil {
		return ci, err
	}
	// parse back so ContentType is populated from the canonical encoding
	_, err = asn1.Unmarshal(ci.Raw, &ci)
	return
}

// Bytes returns the encoded inner content, or nil if it is detached
func (ci ContentInfo) Bytes() ([]byte, error) {
	if len(ci.Raw) == 0 {
		return nil, nil
	}
	var cinfo contentInfo2
	if _, err := asn1.Unmarshal(ci.Raw, &cinfo); err != nil {
		return nil, err
	}
	return cinfo.Value.Bytes, nil
}

// Unmarshal decodes the inner content into dest
func (ci ContentInfo) Unmarshal(dest interface{}) error {
	blob, err := ci.Bytes()
	if err != nil {
		return err
	} else if blob == nil {
		return errors.New("pkcs7: missing content")
	}
	rest, err := asn1.Unmarshal(blob, dest)
	if err != nil {
		return err
	} else if len(rest) != 0 {
		return errors.New("pkcs7: trailing garbage after content")
	}
	return nil
}

// MarshalCertificates packs DER certificates into the implicitly tagged SET OF
// used by SignedData
func MarshalCertificates(certs [][]byte) RawCertificates {
	if len(certs) == 0 {
		return RawCertificates{}
	}
	var buf bytes.Buffer
	for _, cert := range certs {
		buf.Write(cert)
	}
	val := asn1.RawValue{Bytes: buf.Bytes(), Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true}
	b, _ := asn1.Marshal(val)
	return RawCertificates{Raw: b}
}

// Parse returns the certificates in the list
func (raw RawCertificates) Parse() ([]*x509.Certificate, error) {
	var val asn1.RawValue
	if len(raw.Raw) == 0 {
		return nil, nil
	}
	if _, err := asn1.Unmarshal(raw.Raw, &val); err != nil {
		return nil, err
	}
	return x509.ParseCertificates(val.Bytes)
}

// Unmarshal parses a DER-encoded ContentInfo holding SignedData. Trailing data
// is returned as an error.
func Unmarshal(der []byte) (*ContentInfoSignedData, error) {
	psd := new(ContentInfoSignedData)
	rest, err := asn1.Unmarshal(der, psd)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: %w", err)
	} else if len(bytes.TrimRight(rest, "\x00")) != 0 {
		return nil, errors.New("pkcs7: trailing garbage after signature")
	} else if !psd.ContentType.Equal(OidSignedData) {
		return nil, fmt.Errorf("pkcs7: expected signedData but got %s", psd.ContentType)
	}
	return psd, nil
}

// Marshal encodes the structure to DER
func (psd *ContentInfoSignedData) Marshal() ([]byte, error) {
	return asn1.Marshal(*psd)
}

// ParseCertificates extracts the certificate list from a DER-encoded SignedData
func ParseCertificates(der []byte) ([]*x509.Certificate, error) {
	psd, err := Unmarshal(der)
	if err != nil {
		return nil, err
	}
	certs, err := psd.Content.Certificates.Parse()
	if err != nil {
		return nil, fmt.Errorf("pkcs7: %w", err)
	} else if len(certs) == 0 {
		return nil, errors.New("pkcs7: no certificates")
	}
	return certs, nil
}
