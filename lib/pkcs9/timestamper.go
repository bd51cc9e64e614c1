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
	"context"
	"encoding/asn1"

	"github.com/sassoftware/pesign/lib/pkcs7"
)

// Timestamper performs a RFC 3161 exchange: it sends a DER-encoded
// TimeStampReq to an authority and returns the DER-encoded TimeStampResp.
type Timestamper interface {
	Timestamp(ctx context.Context, req []byte) ([]byte, error)
}

// TimestampFunc adapts a function to the Timestamper interface
type TimestampFunc func(ctx context.Context, req []byte) ([]byte, error)

func (f TimestampFunc) Timestamp(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

// AddStampToSignedData attaches a timestamp token to a SignerInfo as an
// unauthenticated attribute
func AddStampToSignedData(signerInfo *pkcs7.SignerInfo, token []byte) error {
	return signerInfo.UnauthenticatedAttributes.Add(OidAttributeTimeStampToken, asn1.RawValue{FullBytes: token})
}
