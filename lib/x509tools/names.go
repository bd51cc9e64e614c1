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
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"strings"
	"unicode/utf16"
)

type rdnAttr struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue
}

type rdnNameSet []rdnAttr

var attrNames = []struct {
	Type asn1.ObjectIdentifier
	Name string
}{
	{asn1.ObjectIdentifier{2, 5, 4, 3}, "CN"},
	{asn1.ObjectIdentifier{2, 5, 4, 5}, "serialNumber"},
	{asn1.ObjectIdentifier{2, 5, 4, 6}, "C"},
	{asn1.ObjectIdentifier{2, 5, 4, 7}, "L"},
	{asn1.ObjectIdentifier{2, 5, 4, 8}, "ST"},
	{asn1.ObjectIdentifier{2, 5, 4, 10}, "O"},
	{asn1.ObjectIdentifier{2, 5, 4, 11}, "OU"},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}, "emailAddress"},
}

const InvalidName = "<invalid>"

// FormatPkixName formats a DER-encoded distinguished name in the slash
// separated style used by openssl
func FormatPkixName(der []byte) string {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return InvalidName
	}
	seqbytes := seq.Bytes
	var formatted []string
	for len(seqbytes) > 0 {
		var rdnSet rdnNameSet
		var err error
		seqbytes, err = asn1.UnmarshalWithParams(seqbytes, &rdnSet, "set")
		if err != nil {
			return InvalidName
		}
		var elems []string
		for _, attr := range rdnSet {
			elems = append(elems, fmt.Sprintf("%s=%s", attName(attr.Type), attValue(attr.Value)))
		}
		formatted = append(formatted, strings.Join(elems, "+"))
	}
	if len(formatted) == 0 {
		return ""
	}
	return "/" + strings.Join(formatted, "/") + "/"
}

func attName(t asn1.ObjectIdentifier) string {
	for _, name := range attrNames {
		if name.Type.Equal(t) {
			return name.Name
		}
	}
	return t.String()
}

func attValue(raw asn1.RawValue) string {
	var value string
	switch raw.Tag {
	case asn1.TagUTF8String, asn1.TagIA5String, asn1.TagPrintableString:
		value = string(raw.Bytes)
	case asn1.TagBMPString:
		if len(raw.Bytes)%2 != 0 {
			return InvalidName
		}
		words := make([]uint16, len(raw.Bytes)/2)
		for i := range words {
			words[i] = uint16(raw.Bytes[2*i])<<8 | uint16(raw.Bytes[2*i+1])
		}
		value = string(utf16.Decode(words))
	default:
		return InvalidName
	}
	return strings.ReplaceAll(value, "/", `\/`)
}

func FormatSubject(cert *x509.Certificate) string {
	return FormatPkixName(cert.RawSubject)
}

func FormatIssuer(cert *x509.Certificate) string {
	return FormatPkixName(cert.RawIssuer)
}
