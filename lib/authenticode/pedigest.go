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
	"crypto/x509/pkix"
	"iter"
)

// DigestInput yields the regions of the image covered by the Authenticode
// digest: everything except the checksum field, the certificate table slot
// and the certificate table itself. An unsigned image is padded with zeroes
// to a multiple of 8 bytes, matching the layout it will have once signed.
//
// The yielded slices alias the image and must not be retained past the
// next modification.
func (p *PEFile) DigestInput() (iter.Seq[[]byte], error) {
	dd, err := p.certTable()
	if err != nil {
		return nil, err
	}
	buf := p.buf
	ckPos := p.checksumPos()
	slotPos := dd.offset
	slotEnd := slotPos + dataDirEntrySize
	signed := dd.Exists()
	var certStart, certEnd int
	if signed {
		if err := dd.check(); err != nil {
			return nil, err
		}
		certStart = int(dd.Address())
		certEnd = certStart + int(dd.Size())
		if certStart < slotEnd {
			return nil, formatError("certificate table overlaps the headers")
		}
	}
	return func(yield func([]byte) bool) {
		if !yield(buf[:ckPos:ckPos]) {
			return
		}
		if !yield(buf[ckPos+4 : slotPos : slotPos]) {
			return
		}
		if signed {
			if !yield(buf[slotEnd:certStart:certStart]) {
				return
			}
			yield(buf[certEnd:len(buf):len(buf)])
			return
		}
		if !yield(buf[slotEnd:len(buf):len(buf)]) {
			return
		}
		if pad := alignPad(len(buf)); pad != 0 {
			yield(make([]byte, pad))
		}
	}, nil
}

// CalculateDigest feeds the Authenticode digest input to the given digest function
func (p *PEFile) CalculateDigest(ctx context.Context, digest DigestFunc) ([]byte, error) {
	chunks, err := p.DigestInput()
	if err != nil {
		return nil, err
	}
	return digest(ctx, chunks)
}

// GetIndirectData digests the image and wraps the result for signing
func (p *PEFile) GetIndirectData(ctx context.Context, digest DigestFunc, digestAlg pkix.AlgorithmIdentifier) (*SpcIndirectDataContent, error) {
	imprint, err := p.CalculateDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	return NewPEIndirectData(imprint, digestAlg)
}
