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

package pecmd

import (
	"bytes"
	"encoding/asn1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/sassoftware/pesign/cmdline/shared"
	"github.com/sassoftware/pesign/lib/atomicfile"
	"github.com/sassoftware/pesign/lib/authenticode"
	"github.com/sassoftware/pesign/lib/pkcs7"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/x509tools"
)

var SignatureCmd = &cobra.Command{
	Use:   "pe-signature",
	Short: "Show, extract or remove the signature embedded in a PE executable",
	RunE:  signatureCmd,
}

var (
	argExtract string
	argRemove  bool
	argJSON    bool
)

func init() {
	shared.RootCmd.AddCommand(SignatureCmd)
	SignatureCmd.Flags().StringVarP(&argFile, "file", "f", "", "Input file")
	SignatureCmd.Flags().StringVarP(&argOutput, "output", "o", "", "Output file for --remove. Defaults to overwriting the input file")
	SignatureCmd.Flags().StringVar(&argExtract, "extract", "", "Write the PKCS#7 signature to this file, or - for stdout")
	SignatureCmd.Flags().BoolVar(&argRemove, "remove", false, "Remove the signature")
	SignatureCmd.Flags().BoolVarP(&argJSON, "json-output", "j", false, "Print signature details as JSON")
}

type signatureInfo struct {
	Subject     string     `json:"subject"`
	Issuer      string     `json:"issuer"`
	Digest      string     `json:"digest"`
	Imprint     string     `json:"imprint"`
	SigningTime *time.Time `json:"signing_time,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Nested      bool       `json:"nested"`
}

func signatureCmd(cmd *cobra.Command, args []string) error {
	pe, err := readPE()
	if err != nil {
		return err
	}
	if !pe.HasSignature() {
		return errors.New("file is not signed")
	}
	der, err := pe.GetSignature()
	if err != nil {
		return err
	}
	if argExtract != "" {
		if err := atomicfile.WriteFile(argExtract, der); err != nil {
			return err
		}
	}
	if argRemove {
		pe.EraseSignature()
		return writeOutput(pe.Bytes())
	}
	if argExtract == "-" {
		return nil
	}
	infos, err := describeSignature(der, false)
	if err != nil {
		return err
	}
	return printInfo(cmd.OutOrStdout(), infos)
}

func printInfo(w io.Writer, infos []signatureInfo) error {
	if argJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	for i, info := range infos {
		kind := "signature"
		if info.Nested {
			kind = "nested signature"
		}
		fmt.Fprintf(w, "%s %d:\n", kind, i+1)
		fmt.Fprintf(w, "  subject:   %s\n", info.Subject)
		fmt.Fprintf(w, "  issuer:    %s\n", info.Issuer)
		fmt.Fprintf(w, "  digest:    %s %s\n", info.Digest, info.Imprint)
		if info.SigningTime != nil {
			fmt.Fprintf(w, "  signed:    %s\n", info.SigningTime.Format(time.RFC3339))
		}
		if info.Timestamp != nil {
			fmt.Fprintf(w, "  timestamp: %s\n", info.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// describeSignature summarizes each signer in a PKCS#7 signature, followed by
// any signatures nested inside it
func describeSignature(der []byte, nested bool) ([]signatureInfo, error) {
	psd, err := pkcs7.Unmarshal(der)
	if err != nil {
		return nil, err
	}
	certs, err := psd.Content.Certificates.Parse()
	if err != nil {
		return nil, err
	}
	var indirect authenticode.SpcIndirectDataContent
	if err := psd.Content.ContentInfo.Unmarshal(&indirect); err != nil {
		return nil, fmt.Errorf("parsing indirect data: %w", err)
	}
	var infos, nestedInfos []signatureInfo
	for _, si := range psd.Content.SignerInfos {
		info := signatureInfo{
			Digest:  si.DigestAlgorithm.Algorithm.String(),
			Imprint: hex.EncodeToString(indirect.MessageDigest.Digest),
			Nested:  nested,
		}
		if hash, ok := x509tools.PkixDigestToHash(si.DigestAlgorithm); ok {
			info.Digest = x509tools.HashName(hash)
		}
		for _, cert := range certs {
			if bytes.Equal(cert.RawIssuer, si.IssuerAndSerialNumber.IssuerName.FullBytes) && sameSerial(cert.SerialNumber, si.IssuerAndSerialNumber.SerialNumber) {
				info.Subject = x509tools.FormatSubject(cert)
				info.Issuer = x509tools.FormatIssuer(cert)
				break
			}
		}
		var signingTime time.Time
		if err := si.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeSigningTime, &signingTime); err == nil {
			info.SigningTime = &signingTime
		}
		var token asn1.RawValue
		if err := si.UnauthenticatedAttributes.GetOne(pkcs9.OidAttributeTimeStampToken, &token); err == nil {
			if tokenPSD, err := pkcs7.Unmarshal(token.FullBytes); err == nil {
				if tst, err := pkcs9.UnpackTokenInfo(tokenPSD); err == nil {
					info.Timestamp = &tst.GenTime
				}
			}
		}
		infos = append(infos, info)
		var nestedSigs []asn1.RawValue
		if err := si.UnauthenticatedAttributes.GetAll(authenticode.OidSpcNestedSignature, &nestedSigs); err == nil {
			for _, raw := range nestedSigs {
				more, err := describeSignature(raw.FullBytes, true)
				if err != nil {
					return nil, fmt.Errorf("nested signature: %w", err)
				}
				nestedInfos = append(nestedInfos, more...)
			}
		}
	}
	return append(infos, nestedInfos...), nil
}

func sameSerial(a, b *big.Int) bool {
	return a != nil && b != nil && a.Cmp(b) == 0
}
