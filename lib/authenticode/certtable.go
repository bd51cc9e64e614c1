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
	"encoding/asn1"
	"encoding/binary"

	"github.com/sassoftware/pesign/signers/sigerrors"
)

func (p *PEFile) certTable() (*DataDirectory, error) {
	dd := p.DataDirectory(CertificateTable)
	if dd == nil {
		return nil, sigerrors.LayoutError{Reason: "image has no slot for the certificate table"}
	}
	return dd, nil
}

// HasSignature reports whether the certificate table is present
func (p *PEFile) HasSignature() bool {
	dd := p.DataDirectory(CertificateTable)
	return dd != nil && dd.Exists()
}

// GetSignature returns the PKCS#7 signature stored in the first record of the
// certificate table
func (p *PEFile) GetSignature() ([]byte, error) {
	dd, err := p.certTable()
	if err != nil {
		return nil, err
	}
	if !dd.Exists() {
		return nil, formatError("image is not signed")
	}
	if err := dd.check(); err != nil {
		return nil, err
	}
	addr := int(dd.Address())
	if dd.Size() < certHeaderSize {
		return nil, formatError("certificate table is too small")
	}
	hdr := p.buf[addr:]
	length := binary.LittleEndian.Uint32(hdr)
	revision := binary.LittleEndian.Uint16(hdr[4:])
	certType := binary.LittleEndian.Uint16(hdr[6:])
	if length < certHeaderSize || uint64(length) > uint64(len(hdr)) {
		return nil, formatError("certificate record length %d is out of bounds", length)
	}
	if revision != certRevision2 {
		return nil, formatError("unsupported certificate revision 0x%04x", revision)
	}
	if certType != certTypePKCS7 {
		return nil, formatError("unsupported certificate type 0x%04x", certType)
	}
	der := hdr[certHeaderSize:length]
	// strip alignment padding if the payload parses as a single DER element
	var raw asn1.RawValue
	if rest, err := asn1.Unmarshal(der, &raw); err == nil && allZero(rest) {
		der = raw.FullBytes
	}
	return append([]byte(nil), der...), nil
}

// SetSignature stores a PKCS#7 signature as the sole record of the
// certificate table, which must be or become the last thing in the file
func (p *PEFile) SetSignature(der []byte) error {
	dd, err := p.certTable()
	if err != nil {
		return err
	}
	if !dd.Exists() {
		if pad := alignPad(len(p.buf)); pad != 0 {
			p.buf = append(p.buf, make([]byte, pad)...)
		}
	}
	record := make([]byte, certHeaderSize+len(der)+alignPad(len(der)))
	binary.LittleEndian.PutUint32(record, uint32(len(record)))
	binary.LittleEndian.PutUint16(record[4:], certRevision2)
	binary.LittleEndian.PutUint16(record[6:], certTypePKCS7)
	copy(record[certHeaderSize:], der)
	return p.WriteDataDirectory(CertificateTable, record)
}

// EraseSignature removes the certificate table. When it is last in the file
// the file is truncated, otherwise its contents are zeroed.
func (p *PEFile) EraseSignature() {
	dd := p.DataDirectory(CertificateTable)
	if dd == nil || !dd.Exists() {
		return
	}
	if dd.IsTrailing() {
		p.buf = p.buf[:dd.Address()]
	} else {
		dd.Erase()
	}
	dd.Write(0, 0)
	p.UpdateChecksum()
}

func alignPad(n int) int {
	return (certTableAlign - n%certTableAlign) % certTableAlign
}

func allZero(d []byte) bool {
	for _, b := range d {
		if b != 0 {
			return false
		}
	}
	return true
}
