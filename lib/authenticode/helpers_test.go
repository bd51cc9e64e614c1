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
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"iter"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sassoftware/pesign/lib/certloader"
)

const testPEStart = 0x80

// buildPE makes a minimal image with just enough header for the container
// code: DOS stub, PE signature, optional header magic and data directories,
// followed by bodyLen bytes of filler.
func buildPE(t testing.TB, format PEFormat, numDirs, bodyLen int) []byte {
	t.Helper()
	magic := uint16(0x10b)
	numDirsOff := testPEStart + numDirsOffset32
	dirStart := testPEStart + dataDirsOffset32
	if format == PE32Plus {
		magic = 0x20b
		numDirsOff = testPEStart + numDirsOffset64
		dirStart = testPEStart + dataDirsOffset64
	}
	buf := make([]byte, dirStart+dataDirEntrySize*numDirs+bodyLen)
	buf[0], buf[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(buf[peOffsetLocation:], testPEStart)
	copy(buf[testPEStart:], "PE\x00\x00")
	binary.LittleEndian.PutUint16(buf[testPEStart+optHeaderMagicOffset:], magic)
	binary.LittleEndian.PutUint32(buf[numDirsOff:], uint32(numDirs))
	for i := dirStart + dataDirEntrySize*numDirs; i < len(buf); i++ {
		buf[i] = byte(i*7 + 3)
	}
	return buf
}

func newTestPE(t testing.TB) *PEFile {
	t.Helper()
	p, err := NewPEFile(buildPE(t, PE32, 16, 1001))
	require.NoError(t, err)
	return p
}

func sha256Digest(_ context.Context, chunks iter.Seq[[]byte]) ([]byte, error) {
	h := sha256.New()
	for chunk := range chunks {
		h.Write(chunk)
	}
	return h.Sum(nil), nil
}

func newTestBackend(t testing.TB) (*CertBackend, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1234),
		Subject:      pkix.Name{CommonName: "Authenticode Test Signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	backend, err := NewCertBackend(&certloader.Certificate{
		Leaf:         cert,
		Certificates: []*x509.Certificate{cert},
		PrivateKey:   key,
	}, crypto.SHA256)
	require.NoError(t, err)
	return backend, key
}
