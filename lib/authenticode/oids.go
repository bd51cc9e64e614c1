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

import "encoding/asn1"

var (
	OidSpcIndirectDataContent = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
	OidSpcStatementType       = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 11}
	OidSpcPeImageData         = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}
	OidSpcIndividualPurpose   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 21}
	OidSpcNestedSignature     = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 4, 1}
)

const (
	// WIN_CERTIFICATE header values
	certRevision2    = 0x0200
	certTypePKCS7    = 0x0002
	certHeaderSize   = 8
	certTableAlign   = 8
	dosHeaderSize    = 64
	peOffsetLocation = 0x3c

	// offsets relative to the PE signature
	optHeaderMagicOffset = 24
	checksumOffset       = 88
	numDirsOffset32      = 116
	numDirsOffset64      = 132
	dataDirsOffset32     = 120
	dataDirsOffset64     = 136
	dataDirEntrySize     = 8
)
