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
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marshal and unmarshal so FullBytes is set
func roundTrip(t *testing.T, l AttributeList) AttributeList {
	t.Helper()
	raw, err := marshalUnsortedSet(l)
	require.NoError(t, err)
	var l2 AttributeList
	_, err = asn1.UnmarshalWithParams(raw, &l2, "set")
	require.NoError(t, err)
	return l2
}

func TestAttributeList(t *testing.T) {
	var l AttributeList
	assert.False(t, l.Exists(OidAttributeSigningTime))
	a := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, l.Add(OidAttributeSigningTime, a))
	ll := roundTrip(t, l)
	assert.True(t, ll.Exists(OidAttributeSigningTime))
	var x time.Time
	if assert.NoError(t, ll.GetOne(OidAttributeSigningTime, &x)) {
		assert.Equal(t, a, x)
	}

	b := a.AddDate(0, 0, 1)
	assert.NoError(t, l.Add(OidAttributeSigningTime, b))
	ll = roundTrip(t, l)
	assert.Error(t, ll.GetOne(OidAttributeSigningTime, &x))
	var times []time.Time
	if assert.NoError(t, ll.GetAll(OidAttributeSigningTime, &times)) {
		assert.Equal(t, []time.Time{a, b}, times)
	}
}

func TestAttributeMissing(t *testing.T) {
	var l AttributeList
	var x []byte
	err := l.GetOne(OidAttributeMessageDigest, &x)
	assert.ErrorAs(t, err, &ErrNoAttribute{})
	var xs [][]byte
	assert.ErrorAs(t, l.GetAll(OidAttributeMessageDigest, &xs), &ErrNoAttribute{})
}

func TestAddAfterDecode(t *testing.T) {
	// appending to a decoded attribute must not reuse its stale encoding
	var l AttributeList
	require.NoError(t, l.Add(OidAttributeMessageDigest, []byte("one")))
	ll := roundTrip(t, l)
	require.NotEmpty(t, ll[0].Values.FullBytes)
	require.NoError(t, ll.Add(OidAttributeMessageDigest, []byte("two")))
	ll = roundTrip(t, ll)
	var values [][]byte
	require.NoError(t, ll.GetAll(OidAttributeMessageDigest, &values))
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, values)
}

func TestAttributeBytesIsSet(t *testing.T) {
	var l AttributeList
	require.NoError(t, l.Add(OidAttributeContentType, OidData))
	require.NoError(t, l.Add(OidAttributeMessageDigest, []byte{1, 2, 3}))
	blob, err := l.Bytes()
	require.NoError(t, err)
	assert.Equal(t, byte(0x31), blob[0])
	// the implicitly tagged form inside a SignerInfo differs only by the tag
	tagged, err := asn1.MarshalWithParams(l, "tag:0")
	require.NoError(t, err)
	assert.Equal(t, byte(0xa0), tagged[0])
	assert.Equal(t, blob[1:], tagged[1:])
}
