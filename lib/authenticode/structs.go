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
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"unicode/utf16"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SpcString ::= CHOICE {
//     unicode [0] IMPLICIT BMPSTRING,
//     ascii   [1] IMPLICIT IA5STRING
// }
//
// Only the unicode form is produced.
type SpcString struct {
	Unicode []byte // UTF-16BE
}

func NewSpcString(value string) SpcString {
	words := utf16.Encode([]rune(value))
	buf := make([]byte, 0, 2*len(words))
	for _, w := range words {
		buf = append(buf, byte(w>>8), byte(w))
	}
	return SpcString{Unicode: buf}
}

func (s SpcString) String() string {
	words := make([]uint16, len(s.Unicode)/2)
	for i := range words {
		words[i] = uint16(s.Unicode[2*i])<<8 | uint16(s.Unicode[2*i+1])
	}
	return string(utf16.Decode(words))
}

func (s SpcString) marshal(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {
		b.AddBytes(s.Unicode)
	})
}

type SpcLinkType int

// SpcLink ::= CHOICE {
//     url     [0] IMPLICIT IA5STRING,
//     moniker [1] IMPLICIT SpcSerializedObject,
//     file    [2] EXPLICIT SpcString
// }
const (
	SpcLinkURL SpcLinkType = iota
	SpcLinkMoniker
	SpcLinkFile
)

// SpcLink points at the signed object. Signatures over PE images always use
// the file variant with an empty name.
type SpcLink struct {
	Type    SpcLinkType
	URL     string
	Moniker []byte // encoded contents of SpcSerializedObject
	File    SpcString
}

func NewSpcFileLink(file SpcString) SpcLink {
	return SpcLink{Type: SpcLinkFile, File: file}
}

func (l SpcLink) marshal(b *cryptobyte.Builder) {
	switch l.Type {
	case SpcLinkURL:
		b.AddASN1(cbasn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(l.URL))
		})
	case SpcLinkMoniker:
		b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddBytes(l.Moniker)
		})
	case SpcLinkFile:
		b.AddASN1(cbasn1.Tag(2).ContextSpecific().Constructed(), l.File.marshal)
	default:
		b.SetError(fmt.Errorf("unknown SpcLink type %d", l.Type))
	}
}

// SpcAttributeTypeAndOptionalValue ::= SEQUENCE {
//     type  ObjectID,
//     value ANY OPTIONAL
// }
type SpcAttributeTypeAndOptionalValue struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"optional"`
}

// PeImageFlags is the single reserved flag bit set in every signature
var PeImageFlags = asn1.BitString{Bytes: []byte{0x80}, BitLength: 1}

// SpcPeImageData ::= SEQUENCE {
//     flags SpcPeImageFlags DEFAULT { includeResources },
//     file  [0] EXPLICIT SpcLink
// }
type SpcPeImageData struct {
	Flags asn1.BitString
	File  SpcLink
}

func (d SpcPeImageData) Marshal() ([]byte, error) {
	flags, err := asn1.Marshal(d.Flags)
	if err != nil {
		return nil, err
	}
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(flags)
		b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), d.File.marshal)
	})
	return b.Bytes()
}

type DigestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}

// SpcIndirectDataContent ::= SEQUENCE {
//     data          SpcAttributeTypeAndOptionalValue,
//     messageDigest DigestInfo
// }
type SpcIndirectDataContent struct {
	Data          SpcAttributeTypeAndOptionalValue
	MessageDigest DigestInfo
}

// NewPEIndirectData wraps a PE image digest in the structure that gets signed
func NewPEIndirectData(imprint []byte, digestAlg pkix.AlgorithmIdentifier) (*SpcIndirectDataContent, error) {
	peData := SpcPeImageData{
		Flags: PeImageFlags,
		File:  NewSpcFileLink(NewSpcString("")),
	}
	encoded, err := peData.Marshal()
	if err != nil {
		return nil, err
	}
	return &SpcIndirectDataContent{
		Data: SpcAttributeTypeAndOptionalValue{
			Type:  OidSpcPeImageData,
			Value: asn1.RawValue{FullBytes: encoded},
		},
		MessageDigest: DigestInfo{
			DigestAlgorithm: digestAlg,
			Digest:          imprint,
		},
	}, nil
}

func (c *SpcIndirectDataContent) Marshal() ([]byte, error) {
	return asn1.Marshal(*c)
}

// SpcSpStatementType ::= SEQUENCE OF OBJECT IDENTIFIER
type SpcSpStatementType struct {
	Type asn1.ObjectIdentifier
}
