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
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sassoftware/pesign/lib/pkcs7"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/x509tools"
	"github.com/sassoftware/pesign/signers/sigerrors"
)

type SignOptions struct {
	// Replace removes an existing signature before signing
	Replace bool
	// Nest appends the new signature to an existing one
	Nest bool
	// RequireTimestamp fails if the backend cannot timestamp
	RequireTimestamp bool
}

// Signer produces Authenticode signatures using a Backend. If the backend
// also implements pkcs9.Timestamper then signatures are timestamped, and if
// it implements IntermediateProvider its chain is included.
type Signer struct {
	backend Backend
	// Now returns the signing time. Defaults to time.Now.
	Now func() time.Time
}

func NewSigner(backend Backend) *Signer {
	return &Signer{backend: backend, Now: time.Now}
}

// Sign digests the container, builds a signature and embeds it. The updated
// container contents are returned.
func (s *Signer) Sign(ctx context.Context, file Signable, opts SignOptions) ([]byte, error) {
	if opts.Replace && opts.Nest {
		return nil, sigerrors.ConflictError{Reason: "replace and nest are mutually exclusive"}
	}
	timestamper, canTimestamp := s.backend.(pkcs9.Timestamper)
	if opts.RequireTimestamp && !canTimestamp {
		return nil, sigerrors.CapabilityError{Capability: "timestamping"}
	}
	log := zerolog.Ctx(ctx).With().Str("op", uuid.NewString()).Logger()
	signed := false
	holder, canErase := file.(SignatureHolder)
	if canErase {
		signed = holder.HasSignature()
	} else if opts.Nest {
		_, err := file.GetSignature()
		signed = err == nil
	}
	switch {
	case opts.Nest && !signed:
		return nil, sigerrors.ConflictError{Reason: "no existing signature to nest into"}
	case signed && opts.Replace:
		log.Debug().Msg("removing existing signature")
		holder.EraseSignature()
	case signed && !opts.Nest:
		return nil, sigerrors.ConflictError{Reason: "file is already signed; replace or nest the signature"}
	}
	cert, err := x509.ParseCertificate(s.backend.Certificate())
	if err != nil {
		return nil, fmt.Errorf("parsing signer certificate: %w", err)
	}
	digestAlg := s.backend.DigestAlgorithm()
	indirect, err := file.GetIndirectData(ctx, s.backend.Digest, digestAlg)
	if err != nil {
		return nil, err
	}
	log.Debug().Hex("imprint", indirect.MessageDigest.Digest).Msg("computed image digest")
	psd, err := s.signIndirect(ctx, log, cert, indirect, timestamper)
	if err != nil {
		return nil, err
	}
	der, err := psd.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshalling signature: %w", err)
	}
	if opts.Nest {
		der, err = nestSignature(file, der)
		if err != nil {
			return nil, err
		}
	}
	if err := file.SetSignature(der); err != nil {
		return nil, err
	}
	log.Info().
		Str("subject", x509tools.FormatSubject(cert)).
		Str("digest", digestAlg.Algorithm.String()).
		Bool("timestamped", timestamper != nil).
		Bool("nested", opts.Nest).
		Int("size", len(der)).
		Msg("signed")
	return file.Bytes(), nil
}

func (s *Signer) signIndirect(ctx context.Context, log zerolog.Logger, cert *x509.Certificate, indirect *SpcIndirectDataContent, timestamper pkcs9.Timestamper) (*pkcs7.ContentInfoSignedData, error) {
	encoded, err := indirect.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshalling indirect data: %w", err)
	}
	// the message digest covers the contents of the SEQUENCE, not its header
	var content asn1.RawValue
	if _, err := asn1.Unmarshal(encoded, &content); err != nil {
		return nil, err
	}
	contentDigest, err := s.backend.Digest(ctx, single(content.Bytes))
	if err != nil {
		return nil, fmt.Errorf("digesting indirect data: %w", err)
	}
	var attrs pkcs7.AttributeList
	if err := attrs.Add(pkcs7.OidAttributeContentType, OidSpcIndirectDataContent); err != nil {
		return nil, err
	}
	if err := attrs.Add(pkcs7.OidAttributeSigningTime, s.Now().UTC()); err != nil {
		return nil, err
	}
	if err := attrs.Add(OidSpcStatementType, SpcSpStatementType{Type: OidSpcIndividualPurpose}); err != nil {
		return nil, err
	}
	if err := attrs.Add(pkcs7.OidAttributeMessageDigest, contentDigest); err != nil {
		return nil, err
	}
	attrBytes, err := attrs.Bytes()
	if err != nil {
		return nil, fmt.Errorf("marshalling signed attributes: %w", err)
	}
	sig, err := s.backend.Sign(ctx, single(attrBytes))
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}
	si := pkcs7.SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: pkcs7.IssuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: cert.RawIssuer},
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm:           s.backend.DigestAlgorithm(),
		AuthenticatedAttributes:   attrs,
		DigestEncryptionAlgorithm: s.backend.SignatureAlgorithm(),
		EncryptedDigest:           sig,
	}
	if timestamper != nil {
		if err := s.timestamp(ctx, log, &si, timestamper); err != nil {
			return nil, err
		}
	}
	contentInfo, err := pkcs7.NewContentInfo(OidSpcIndirectDataContent, asn1.RawValue{FullBytes: encoded})
	if err != nil {
		return nil, err
	}
	certs := [][]byte{cert.Raw}
	if ip, ok := s.backend.(IntermediateProvider); ok {
		certs = append(certs, ip.Intermediates()...)
	}
	return &pkcs7.ContentInfoSignedData{
		ContentType: pkcs7.OidSignedData,
		Content: pkcs7.SignedData{
			Version:                    1,
			DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{s.backend.DigestAlgorithm()},
			ContentInfo:                contentInfo,
			Certificates:               pkcs7.MarshalCertificates(certs),
			SignerInfos:                []pkcs7.SignerInfo{si},
		},
	}, nil
}

// timestamp countersigns the signature value and attaches the token
func (s *Signer) timestamp(ctx context.Context, log zerolog.Logger, si *pkcs7.SignerInfo, timestamper pkcs9.Timestamper) error {
	imprint, err := s.backend.Digest(ctx, single(si.EncryptedDigest))
	if err != nil {
		return sigerrors.TimestampError{Reason: "digesting signature", Err: err}
	}
	req := pkcs9.NewRequestForAlgorithm(s.backend.DigestAlgorithm(), imprint)
	reqDER, err := req.Marshal()
	if err != nil {
		return sigerrors.TimestampError{Reason: "marshalling request", Err: err}
	}
	respDER, err := timestamper.Timestamp(ctx, reqDER)
	if err != nil {
		var tsErr sigerrors.TimestampError
		if errors.As(err, &tsErr) {
			return err
		}
		return sigerrors.TimestampError{Reason: "requesting timestamp", Err: err}
	}
	token, err := req.ParseResponse(respDER)
	if err != nil {
		return err
	}
	log.Debug().Time("gen_time", token.Info.GenTime).Msg("timestamp granted")
	return pkcs9.AddStampToSignedData(si, token.Raw)
}

// nestSignature appends a signature to the first signer of the container's
// existing signature
func nestSignature(file Signable, der []byte) ([]byte, error) {
	existing, err := file.GetSignature()
	if err != nil {
		return nil, err
	}
	psd, err := pkcs7.Unmarshal(existing)
	if err != nil {
		return nil, sigerrors.FormatError{Reason: "existing signature is not valid PKCS#7: " + err.Error()}
	}
	if len(psd.Content.SignerInfos) == 0 {
		return nil, sigerrors.FormatError{Reason: "existing signature has no signers"}
	}
	si := &psd.Content.SignerInfos[0]
	if err := si.UnauthenticatedAttributes.Add(OidSpcNestedSignature, asn1.RawValue{FullBytes: der}); err != nil {
		return nil, err
	}
	return psd.Marshal()
}
