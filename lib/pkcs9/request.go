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

package pkcs9

import (
	"crypto"
	"crypto/hmac"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/sassoftware/pesign/lib/pkcs7"
	"github.com/sassoftware/pesign/lib/x509tools"
	"github.com/sassoftware/pesign/signers/sigerrors"
)

// Token is a timestamp token as returned by the authority, along with its
// decoded TSTInfo
type Token struct {
	Raw  []byte
	Info *TSTInfo
}

// NewRequest creates a timestamp request for the given digest
func NewRequest(hash crypto.Hash, hashValue []byte) (*TimeStampReq, error) {
	alg, ok := x509tools.PkixDigestAlgorithm(hash)
	if !ok {
		return nil, errors.New("unknown digest algorithm")
	}
	return NewRequestForAlgorithm(alg, hashValue), nil
}

// NewRequestForAlgorithm creates a timestamp request for a digest computed
// with the given algorithm
func NewRequestForAlgorithm(alg pkix.AlgorithmIdentifier, hashValue []byte) *TimeStampReq {
	return &TimeStampReq{
		Version: 1,
		MessageImprint: MessageImprint{
			HashAlgorithm: alg,
			HashedMessage: hashValue,
		},
		Nonce:   x509tools.MakeSerial(),
		CertReq: true,
	}
}

// ParseRequest decodes a DER timestamp request
func ParseRequest(der []byte) (*TimeStampReq, error) {
	req := new(TimeStampReq)
	if rest, err := asn1.Unmarshal(der, req); err != nil {
		return nil, fmt.Errorf("pkcs9: unmarshalling request: %w", err)
	} else if len(rest) != 0 {
		return nil, errors.New("pkcs9: trailing bytes in request")
	}
	return req, nil
}

func (req *TimeStampReq) Marshal() ([]byte, error) {
	return asn1.Marshal(*req)
}

// ParseResponse decodes a timestamp response and checks that it was granted
// and carries a token for this request's message imprint
func (req *TimeStampReq) ParseResponse(body []byte) (*Token, error) {
	respmsg := new(TimeStampResp)
	if rest, err := asn1.Unmarshal(body, respmsg); err != nil {
		return nil, sigerrors.TimestampError{Reason: "unmarshalling response", Err: err}
	} else if len(rest) != 0 {
		return nil, sigerrors.TimestampError{Reason: "trailing bytes in response"}
	} else if respmsg.Status.Status != StatusGranted && respmsg.Status.Status != StatusGrantedWithMods {
		return nil, sigerrors.TimestampError{Reason: fmt.Sprintf("request denied: status=%d failureInfo=%x", respmsg.Status.Status, respmsg.Status.FailInfo.Bytes)}
	} else if len(respmsg.TimeStampToken.FullBytes) == 0 {
		return nil, sigerrors.TimestampError{Reason: "response contains no token"}
	}
	tok := &Token{Raw: respmsg.TimeStampToken.FullBytes}
	psd, err := pkcs7.Unmarshal(tok.Raw)
	if err != nil {
		return nil, sigerrors.TimestampError{Reason: "parsing token", Err: err}
	}
	tok.Info, err = UnpackTokenInfo(psd)
	if err != nil {
		return nil, sigerrors.TimestampError{Reason: "parsing token", Err: err}
	}
	if !tok.Info.MessageImprint.HashAlgorithm.Algorithm.Equal(req.MessageImprint.HashAlgorithm.Algorithm) {
		return nil, sigerrors.TimestampError{Reason: "message imprint algorithm mismatch"}
	}
	if !hmac.Equal(tok.Info.MessageImprint.HashedMessage, req.MessageImprint.HashedMessage) {
		return nil, sigerrors.TimestampError{Reason: "message imprint mismatch"}
	}
	return tok, nil
}

// CheckNonce verifies that the token echoes the nonce from the request
func (req *TimeStampReq) CheckNonce(tok *Token) error {
	if req.Nonce == nil {
		return nil
	}
	if tok.Info.Nonce == nil || req.Nonce.Cmp(tok.Info.Nonce) != 0 {
		return sigerrors.TimestampError{Reason: "request nonce mismatch"}
	}
	return nil
}

// UnpackTokenInfo extracts TSTInfo from a timestamp token
func UnpackTokenInfo(psd *pkcs7.ContentInfoSignedData) (*TSTInfo, error) {
	if !psd.Content.ContentInfo.ContentType.Equal(OidTSTInfo) {
		return nil, fmt.Errorf("unpack TSTInfo: unexpected content type %s", psd.Content.ContentInfo.ContentType)
	}
	infobytes, err := psd.Content.ContentInfo.Bytes()
	if err != nil {
		return nil, fmt.Errorf("unpack TSTInfo: %w", err)
	} else if len(infobytes) == 0 {
		return nil, errors.New("unpack TSTInfo: missing content")
	} else if infobytes[0] == 0x04 {
		// unwrap dummy OCTET STRING
		_, err = asn1.Unmarshal(infobytes, &infobytes)
		if err != nil {
			return nil, fmt.Errorf("unpack TSTInfo: %w", err)
		}
	}
	info := new(TSTInfo)
	if _, err := asn1.Unmarshal(infobytes, info); err != nil {
		return nil, fmt.Errorf("unpack TSTInfo: %w", err)
	}
	return info, nil
}
