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
	"crypto"
	"encoding/asn1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"

	"github.com/sassoftware/pesign/lib/x509tools"
)

func TestSpcPeImageDataEncoding(t *testing.T) {
	data := SpcPeImageData{Flags: PeImageFlags, File: NewSpcFileLink(NewSpcString(""))}
	encoded, err := data.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "300a03020780a004a2028000", hex.EncodeToString(encoded))
}

func TestSpcLinkEncoding(t *testing.T) {
	cases := []struct {
		link SpcLink
		want string
	}{
		{SpcLink{Type: SpcLinkURL, URL: "http://x"}, "8008687474703a2f2f78"},
		{SpcLink{Type: SpcLinkMoniker, Moniker: []byte{0x04, 0x00}}, "a1020400"},
		{NewSpcFileLink(NewSpcString("a")), "a20480020061"},
	}
	for _, c := range cases {
		var b cryptobyte.Builder
		c.link.marshal(&b)
		encoded, err := b.Bytes()
		require.NoError(t, err)
		assert.Equal(t, c.want, hex.EncodeToString(encoded))
	}
	var b cryptobyte.Builder
	SpcLink{Type: 7}.marshal(&b)
	_, err := b.Bytes()
	assert.Error(t, err)
}

func TestSpcString(t *testing.T) {
	s := NewSpcString("tëst\U0001F600")
	assert.Equal(t, "tëst\U0001F600", s.String())
	assert.Equal(t, []byte{0, 't', 0, 0xeb}, s.Unicode[:4])
	assert.Len(t, s.Unicode, 12)
}

func TestIndirectDataRoundTrip(t *testing.T) {
	alg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	imprint := make([]byte, 32)
	imprint[0] = 0xfe
	indirect, err := NewPEIndirectData(imprint, alg)
	require.NoError(t, err)
	encoded, err := indirect.Marshal()
	require.NoError(t, err)

	var parsed SpcIndirectDataContent
	rest, err := asn1.Unmarshal(encoded, &parsed)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, parsed.Data.Type.Equal(OidSpcPeImageData))
	assert.Equal(t, "300a03020780a004a2028000", hex.EncodeToString(parsed.Data.Value.FullBytes))
	assert.True(t, parsed.MessageDigest.DigestAlgorithm.Algorithm.Equal(alg.Algorithm))
	assert.Equal(t, imprint, parsed.MessageDigest.Digest)

	reencoded, err := parsed.Marshal()
	require.NoError(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestStatementTypeEncoding(t *testing.T) {
	encoded, err := asn1.Marshal(SpcSpStatementType{Type: OidSpcIndividualPurpose})
	require.NoError(t, err)
	assert.Equal(t, "300c060a2b060104018237020115", hex.EncodeToString(encoded))
}
