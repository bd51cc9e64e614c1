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
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/asn1"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/pesign/lib/pkcs7"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/pkcs9/tstest"
	"github.com/sassoftware/pesign/signers/sigerrors"
)

var testSigningTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestSigner(backend Backend) *Signer {
	s := NewSigner(backend)
	s.Now = func() time.Time { return testSigningTime }
	return s
}

func parseEmbedded(t *testing.T, p *PEFile) *pkcs7.ContentInfoSignedData {
	t.Helper()
	der, err := p.GetSignature()
	require.NoError(t, err)
	psd, err := pkcs7.Unmarshal(der)
	require.NoError(t, err)
	return psd
}

func TestSignPE(t *testing.T) {
	ctx := context.Background()
	backend, key := newTestBackend(t)
	p := newTestPE(t)
	imprint, err := p.CalculateDigest(ctx, sha256Digest)
	require.NoError(t, err)

	out, err := newTestSigner(backend).Sign(ctx, p, SignOptions{})
	require.NoError(t, err)
	assert.Equal(t, p.Bytes(), out)
	assertChecksumValid(t, p)

	psd := parseEmbedded(t, p)
	sd := psd.Content
	assert.Equal(t, 1, sd.Version)
	require.Len(t, sd.DigestAlgorithmIdentifiers, 1)
	assert.True(t, sd.DigestAlgorithmIdentifiers[0].Algorithm.Equal(backend.DigestAlgorithm().Algorithm))
	assert.True(t, sd.ContentInfo.ContentType.Equal(OidSpcIndirectDataContent))
	certs, err := sd.Certificates.Parse()
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, backend.Certificate(), certs[0].Raw)

	// the indirect data carries the image digest
	content, err := sd.ContentInfo.Bytes()
	require.NoError(t, err)
	var indirect SpcIndirectDataContent
	require.NoError(t, sd.ContentInfo.Unmarshal(&indirect))
	assert.Equal(t, imprint, indirect.MessageDigest.Digest)
	assert.True(t, indirect.Data.Type.Equal(OidSpcPeImageData))

	require.Len(t, sd.SignerInfos, 1)
	si := sd.SignerInfos[0]
	assert.Equal(t, 1, si.Version)
	assert.Equal(t, certs[0].SerialNumber, si.IssuerAndSerialNumber.SerialNumber)
	assert.Equal(t, certs[0].RawIssuer, si.IssuerAndSerialNumber.IssuerName.FullBytes)
	assert.Empty(t, si.UnauthenticatedAttributes)

	var types []string
	for _, attr := range si.AuthenticatedAttributes {
		types = append(types, attr.Type.String())
	}
	assert.Equal(t, []string{
		pkcs7.OidAttributeContentType.String(),
		pkcs7.OidAttributeSigningTime.String(),
		OidSpcStatementType.String(),
		pkcs7.OidAttributeMessageDigest.String(),
	}, types)

	var contentType asn1.ObjectIdentifier
	require.NoError(t, si.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeContentType, &contentType))
	assert.True(t, contentType.Equal(OidSpcIndirectDataContent))
	var signingTime time.Time
	require.NoError(t, si.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeSigningTime, &signingTime))
	assert.True(t, testSigningTime.Equal(signingTime))
	var statement SpcSpStatementType
	require.NoError(t, si.AuthenticatedAttributes.GetOne(OidSpcStatementType, &statement))
	assert.True(t, statement.Type.Equal(OidSpcIndividualPurpose))

	// messageDigest covers the contents octets of the indirect data
	var outer asn1.RawValue
	_, err = asn1.Unmarshal(content, &outer)
	require.NoError(t, err)
	contentDigest := sha256.Sum256(outer.Bytes)
	var messageDigest []byte
	require.NoError(t, si.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeMessageDigest, &messageDigest))
	assert.Equal(t, contentDigest[:], messageDigest)

	// the signature covers the attributes as an explicit SET
	attrBytes, err := si.AuthenticatedAttributes.Bytes()
	require.NoError(t, err)
	assert.Equal(t, byte(0x31), attrBytes[0])
	attrDigest := sha256.Sum256(attrBytes)
	assert.True(t, ecdsa.VerifyASN1(&key.PublicKey, attrDigest[:], si.EncryptedDigest))

	// signing does not change the image digest
	after, err := p.CalculateDigest(ctx, sha256Digest)
	require.NoError(t, err)
	assert.Equal(t, imprint, after)
}

func TestSignAlreadySigned(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestBackend(t)
	signer := newTestSigner(backend)
	p := newTestPE(t)
	_, err := signer.Sign(ctx, p, SignOptions{})
	require.NoError(t, err)
	before := append([]byte(nil), p.Bytes()...)

	_, err = signer.Sign(ctx, p, SignOptions{})
	var conflict sigerrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, before, p.Bytes())

	_, err = signer.Sign(ctx, p, SignOptions{Replace: true, Nest: true})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, before, p.Bytes())
}

func TestSignReplace(t *testing.T) {
	ctx := context.Background()
	first, _ := newTestBackend(t)
	second, _ := newTestBackend(t)
	p := newTestPE(t)
	_, err := newTestSigner(first).Sign(ctx, p, SignOptions{})
	require.NoError(t, err)
	_, err = newTestSigner(second).Sign(ctx, p, SignOptions{Replace: true})
	require.NoError(t, err)

	psd := parseEmbedded(t, p)
	certs, err := psd.Content.Certificates.Parse()
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, second.Certificate(), certs[0].Raw)
	assert.False(t, psd.Content.SignerInfos[0].UnauthenticatedAttributes.Exists(OidSpcNestedSignature))
	assertChecksumValid(t, p)
}

func TestSignNested(t *testing.T) {
	ctx := context.Background()
	primary, _ := newTestBackend(t)
	nested1, _ := newTestBackend(t)
	nested2, _ := newTestBackend(t)
	p := newTestPE(t)
	_, err := newTestSigner(primary).Sign(ctx, p, SignOptions{})
	require.NoError(t, err)
	_, err = newTestSigner(nested1).Sign(ctx, p, SignOptions{Nest: true})
	require.NoError(t, err)
	_, err = newTestSigner(nested2).Sign(ctx, p, SignOptions{Nest: true})
	require.NoError(t, err)
	assertChecksumValid(t, p)

	psd := parseEmbedded(t, p)
	certs, err := psd.Content.Certificates.Parse()
	require.NoError(t, err)
	assert.Equal(t, primary.Certificate(), certs[0].Raw)

	var nested []asn1.RawValue
	require.NoError(t, psd.Content.SignerInfos[0].UnauthenticatedAttributes.GetAll(OidSpcNestedSignature, &nested))
	require.Len(t, nested, 2)
	for i, want := range []*CertBackend{nested1, nested2} {
		inner, err := pkcs7.Unmarshal(nested[i].FullBytes)
		require.NoError(t, err)
		innerCerts, err := inner.Content.Certificates.Parse()
		require.NoError(t, err)
		assert.Equal(t, want.Certificate(), innerCerts[0].Raw, "nested signature %d", i)
	}
}

type countingBackend struct {
	*CertBackend
	digests, signs int
}

func (b *countingBackend) Digest(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error) {
	b.digests++
	return b.CertBackend.Digest(ctx, chunks)
}

func (b *countingBackend) Sign(ctx context.Context, chunks iter.Seq[[]byte]) ([]byte, error) {
	b.signs++
	return b.CertBackend.Sign(ctx, chunks)
}

func TestSignNestUnsigned(t *testing.T) {
	inner, _ := newTestBackend(t)
	backend := &countingBackend{CertBackend: inner}
	p := newTestPE(t)
	before := append([]byte(nil), p.Bytes()...)
	_, err := newTestSigner(backend).Sign(context.Background(), p, SignOptions{Nest: true})
	var conflictErr sigerrors.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Contains(t, conflictErr.Reason, "nest")
	assert.Zero(t, backend.digests)
	assert.Zero(t, backend.signs)
	assert.Equal(t, before, p.Bytes())
}

func TestSignTimestamped(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestBackend(t)
	tsa, err := tstest.New()
	require.NoError(t, err)
	p := newTestPE(t)
	_, err = newTestSigner(backend.WithTimestamper(tsa)).Sign(ctx, p, SignOptions{RequireTimestamp: true})
	require.NoError(t, err)
	assert.Equal(t, 1, tsa.Requests())

	si := parseEmbedded(t, p).Content.SignerInfos[0]
	var token asn1.RawValue
	require.NoError(t, si.UnauthenticatedAttributes.GetOne(pkcs9.OidAttributeTimeStampToken, &token))
	tokenPSD, err := pkcs7.Unmarshal(token.FullBytes)
	require.NoError(t, err)
	info, err := pkcs9.UnpackTokenInfo(tokenPSD)
	require.NoError(t, err)
	sigDigest := sha256.Sum256(si.EncryptedDigest)
	assert.Equal(t, sigDigest[:], info.MessageImprint.HashedMessage)
}

func TestSignTimestampRejected(t *testing.T) {
	backend, _ := newTestBackend(t)
	tsa, err := tstest.New()
	require.NoError(t, err)
	tsa.Status = pkcs9.StatusRejection
	p := newTestPE(t)
	before := append([]byte(nil), p.Bytes()...)
	_, err = newTestSigner(backend.WithTimestamper(tsa)).Sign(context.Background(), p, SignOptions{})
	var tsErr sigerrors.TimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, before, p.Bytes())
	assert.False(t, p.HasSignature())
}

func TestSignTimestampTransportError(t *testing.T) {
	backend, _ := newTestBackend(t)
	failure := errors.New("connection refused")
	ts := pkcs9.TimestampFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, failure
	})
	p := newTestPE(t)
	_, err := newTestSigner(backend.WithTimestamper(ts)).Sign(context.Background(), p, SignOptions{})
	var tsErr sigerrors.TimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.ErrorIs(t, err, failure)
	assert.False(t, p.HasSignature())
}

func TestSignRequireTimestamp(t *testing.T) {
	backend, _ := newTestBackend(t)
	p := newTestPE(t)
	_, err := newTestSigner(backend).Sign(context.Background(), p, SignOptions{RequireTimestamp: true})
	var capErr sigerrors.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.False(t, p.HasSignature())
	assert.Same(t, backend, backend.WithTimestamper(nil))
}

func TestSignCancelled(t *testing.T) {
	backend, _ := newTestBackend(t)
	p := newTestPE(t)
	before := append([]byte(nil), p.Bytes()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSigner(backend).Sign(ctx, p, SignOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, bytes.Equal(before, p.Bytes()))
}

type intermediateBackend struct {
	*CertBackend
	extra [][]byte
}

func (b intermediateBackend) Intermediates() [][]byte {
	return b.extra
}

func TestSignIntermediates(t *testing.T) {
	backend, _ := newTestBackend(t)
	other, _ := newTestBackend(t)
	p := newTestPE(t)
	_, err := newTestSigner(intermediateBackend{backend, [][]byte{other.Certificate()}}).Sign(context.Background(), p, SignOptions{})
	require.NoError(t, err)
	certs, err := parseEmbedded(t, p).Content.Certificates.Parse()
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, backend.Certificate(), certs[0].Raw)
	assert.Equal(t, other.Certificate(), certs[1].Raw)
}
