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
)

type DataDirectoryType int

const (
	ExportTable DataDirectoryType = iota
	ImportTable
	ResourceTable
	ExceptionTable
	CertificateTable
	BaseRelocationTable
	Debug
	Architecture
	GlobalPtr
	TLSTable
	LoadConfigTable
	BoundImport
	IAT
	DelayImportDescriptor
	CLRRuntimeHeader
	Reserved
)

var dataDirectoryNames = [...]string{
	"export table", "import table", "resource table", "exception table",
	"certificate table", "base relocation table", "debug", "architecture",
	"global ptr", "TLS table", "load config table", "bound import", "IAT",
	"delay import descriptor", "CLR runtime header", "reserved",
}

func (t DataDirectoryType) String() string {
	if t >= 0 && int(t) < len(dataDirectoryNames) {
		return dataDirectoryNames[t]
	}
	return fmt.Sprintf("data directory %d", int(t))
}

// DataDirectory is a view of one slot in the optional header's data
// directory table. Addresses are treated as file offsets.
type DataDirectory struct {
	file   *PEFile
	typ    DataDirectoryType
	offset int
}

func (d *DataDirectory) Type() DataDirectoryType {
	return d.typ
}

func (d *DataDirectory) Address() uint32 {
	return binary.LittleEndian.Uint32(d.file.buf[d.offset:])
}

func (d *DataDirectory) Size() uint32 {
	return binary.LittleEndian.Uint32(d.file.buf[d.offset+4:])
}

// Exists reports whether the slot points at anything
func (d *DataDirectory) Exists() bool {
	return d.Address() != 0 && d.Size() != 0
}

// IsTrailing reports whether the directory contents end exactly at the end of the file
func (d *DataDirectory) IsTrailing() bool {
	return d.Exists() && uint64(d.Address())+uint64(d.Size()) == uint64(len(d.file.buf))
}

// Erase zeroes the directory contents. The slot itself is unchanged.
func (d *DataDirectory) Erase() {
	if !d.Exists() {
		return
	}
	start, end := int64(d.Address()), int64(d.Address())+int64(d.Size())
	if end > int64(len(d.file.buf)) {
		end = int64(len(d.file.buf))
	}
	if start >= end {
		return
	}
	clear(d.file.buf[start:end])
}

// Write stores a new address and size in the slot
func (d *DataDirectory) Write(address, size uint32) {
	binary.LittleEndian.PutUint32(d.file.buf[d.offset:], address)
	binary.LittleEndian.PutUint32(d.file.buf[d.offset+4:], size)
}

func (d *DataDirectory) check() error {
	if uint64(d.Address())+uint64(d.Size()) > uint64(len(d.file.buf)) {
		return formatError("%s extends past the end of the file", d.typ)
	}
	return nil
}
