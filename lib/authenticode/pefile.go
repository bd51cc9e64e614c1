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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sassoftware/pesign/signers/sigerrors"
)

type PEFormat int

const (
	PE32 PEFormat = iota + 1
	PE32Plus
)

func (f PEFormat) String() string {
	switch f {
	case PE32:
		return "PE32"
	case PE32Plus:
		return "PE32+"
	default:
		return fmt.Sprintf("PEFormat(%d)", int(f))
	}
}

// PEFile is an in-memory PE image that can be digested and signed
type PEFile struct {
	buf      []byte
	peStart  int
	format   PEFormat
	dirStart int
	numDirs  uint32
}

func formatError(reason string, args ...interface{}) error {
	return sigerrors.FormatError{Type: "PE", Reason: fmt.Sprintf(reason, args...)}
}

// NewPEFile parses the headers of a PE image. The buffer is owned by the
// returned PEFile from then on.
func NewPEFile(buf []byte) (*PEFile, error) {
	if len(buf) < dosHeaderSize {
		return nil, formatError("file is too small")
	}
	if buf[0] != 'M' || buf[1] != 'Z' {
		return nil, formatError("missing MZ signature")
	}
	peStart64 := uint64(binary.LittleEndian.Uint32(buf[peOffsetLocation:]))
	if peStart64+optHeaderMagicOffset+2 > uint64(len(buf)) {
		return nil, formatError("PE header offset is out of bounds")
	}
	peStart := int(peStart64)
	if string(buf[peStart:peStart+4]) != "PE\x00\x00" {
		return nil, formatError("missing PE signature")
	}
	p := &PEFile{buf: buf, peStart: peStart}
	var numDirsOff int
	switch magic := binary.LittleEndian.Uint16(buf[peStart+optHeaderMagicOffset:]); magic {
	case 0x10b:
		p.format = PE32
		numDirsOff = peStart + numDirsOffset32
		p.dirStart = peStart + dataDirsOffset32
	case 0x20b:
		p.format = PE32Plus
		numDirsOff = peStart + numDirsOffset64
		p.dirStart = peStart + dataDirsOffset64
	default:
		return nil, formatError("unsupported optional header magic 0x%x", magic)
	}
	if numDirsOff+4 > len(buf) {
		return nil, formatError("optional header is truncated")
	}
	p.numDirs = binary.LittleEndian.Uint32(buf[numDirsOff:])
	if uint64(p.dirStart)+uint64(p.numDirs)*dataDirEntrySize > uint64(len(buf)) {
		return nil, formatError("data directory table is truncated")
	}
	return p, nil
}

// Format returns whether the image has a PE32 or PE32+ optional header
func (p *PEFile) Format() PEFormat {
	return p.format
}

// Bytes returns the current image. The slice is invalidated by any further
// modification.
func (p *PEFile) Bytes() []byte {
	return p.buf
}

// NumberOfDirectories returns the data directory count declared by the optional header
func (p *PEFile) NumberOfDirectories() int {
	return int(p.numDirs)
}

// DataDirectory returns a view of the given slot, or nil if the optional
// header declares fewer directories than that
func (p *PEFile) DataDirectory(t DataDirectoryType) *DataDirectory {
	if t < 0 || uint32(t) >= p.numDirs {
		return nil
	}
	return &DataDirectory{
		file:   p,
		typ:    t,
		offset: p.dirStart + int(t)*dataDirEntrySize,
	}
}

func (p *PEFile) checksumPos() int {
	return p.peStart + checksumOffset
}

// CalculateChecksum computes the image checksum over the current buffer
func (p *PEFile) CalculateChecksum() uint32 {
	h := NewPEChecksum(p.peStart)
	_, _ = h.Write(p.buf)
	return h.Sum32()
}

// Checksum returns the checksum currently stored in the optional header
func (p *PEFile) Checksum() uint32 {
	return binary.LittleEndian.Uint32(p.buf[p.checksumPos():])
}

// UpdateChecksum recomputes the image checksum and stores it in the optional header
func (p *PEFile) UpdateChecksum() {
	binary.LittleEndian.PutUint32(p.buf[p.checksumPos():], p.CalculateChecksum())
}

// WriteDataDirectory places data as the contents of a data directory and
// updates the slot and the image checksum. Existing contents are
// overwritten in place when they are the same size, shrunk in place when
// smaller, or rewritten when they are last in the file. Anything else is
// relocated to the end of the file, except for the certificate table which
// must always be last.
func (p *PEFile) WriteDataDirectory(t DataDirectoryType, data []byte) error {
	dd := p.DataDirectory(t)
	if dd == nil {
		return sigerrors.LayoutError{Reason: fmt.Sprintf("image has no slot for data directory %d", t)}
	}
	if dd.Exists() {
		if err := dd.check(); err != nil {
			return err
		}
	}
	addr, size := int(dd.Address()), int(dd.Size())
	switch {
	case !dd.Exists():
		if err := p.appendDirectory(dd, data); err != nil {
			return err
		}
	case size == len(data):
		copy(p.buf[addr:], data)
	case len(data) < size && t != CertificateTable:
		dd.Erase()
		copy(p.buf[addr:], data)
		dd.Write(uint32(addr), uint32(len(data)))
	case dd.IsTrailing():
		if uint64(addr)+uint64(len(data)) > math.MaxUint32 {
			return sigerrors.LayoutError{Reason: "data directory does not fit in a 32-bit offset"}
		}
		p.buf = append(p.buf[:addr], data...)
		dd.Write(uint32(addr), uint32(len(data)))
	case t == CertificateTable:
		return sigerrors.LayoutError{Reason: "certificate table is not at the end of the file"}
	default:
		dd.Erase()
		if err := p.appendDirectory(dd, data); err != nil {
			return err
		}
	}
	p.UpdateChecksum()
	return nil
}

func (p *PEFile) appendDirectory(dd *DataDirectory, data []byte) error {
	addr := len(p.buf)
	if uint64(addr)+uint64(len(data)) > math.MaxUint32 {
		return sigerrors.LayoutError{Reason: "data directory does not fit in a 32-bit offset"}
	}
	p.buf = append(p.buf, data...)
	dd.Write(uint32(addr), uint32(len(data)))
	return nil
}
