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

package signinit

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sassoftware/pesign/config"
	"github.com/sassoftware/pesign/lib/authenticode"
	"github.com/sassoftware/pesign/lib/certloader"
	"github.com/sassoftware/pesign/lib/passprompt"
	"github.com/sassoftware/pesign/lib/x509tools"
	"github.com/sassoftware/pesign/signers/sigerrors"
)

const keyringService = "pesign"

// PasswordEnv names the environment variable consulted for PKCS#12 passwords
// before prompting
const PasswordEnv = "PESIGN_PASSWORD"

// Options control how a key is prepared for signing
type Options struct {
	// NoTimestamp skips timestamping even if the key asks for it
	NoTimestamp bool
	// Hash overrides the digest configured for the key
	Hash crypto.Hash
	// Prompt obtains passwords for encrypted keys. Defaults to the
	// environment followed by the terminal.
	Prompt passprompt.PasswordGetter
}

// InitKey loads the private key and certificate chain for a key
func InitKey(keyConf *config.KeyConfig, prompt passprompt.PasswordGetter) (*certloader.Certificate, error) {
	if !keyConf.PKCS12 {
		return certloader.LoadX509KeyPair(keyConf.Certificate, keyConf.Key)
	}
	blob, err := os.ReadFile(keyConf.Certificate)
	if err != nil {
		return nil, err
	}
	var cert *certloader.Certificate
	loginFunc := func(password string) (bool, error) {
		cert, err = certloader.DecodePKCS12(blob, password)
		if errors.As(err, new(sigerrors.PinIncorrectError)) {
			return false, nil
		}
		return err == nil, err
	}
	var service string
	if keyConf.UseKeyring {
		service = keyringService
	}
	initialPrompt := fmt.Sprintf("Password for key %s: ", keyConf.Name())
	err = passprompt.Login(loginFunc, prompt, service, keyConf.Name(), initialPrompt, "Incorrect password\r\n")
	if err == io.EOF {
		return nil, fmt.Errorf("key %s: password required but none was provided", keyConf.Name())
	} else if err != nil {
		return nil, fmt.Errorf("key %s: %w", keyConf.Name(), err)
	}
	return cert, nil
}

// Init prepares a signing backend for the named key according to the
// configuration, including a timestamper if the key calls for one
func Init(conf *config.Config, keyName string, opts Options) (authenticode.Backend, error) {
	keyConf, err := conf.GetKey(keyName)
	if err != nil {
		return nil, err
	}
	hash := opts.Hash
	if hash == 0 {
		hash = x509tools.HashByName(keyConf.Digest)
	}
	if hash == 0 {
		return nil, fmt.Errorf("key %s: unsupported digest %q", keyName, keyConf.Digest)
	}
	prompt := opts.Prompt
	if prompt == nil {
		prompt = passprompt.Chain{
			passprompt.EnvPrompt{Name: PasswordEnv},
			passprompt.PasswordPrompt{},
		}
	}
	cert, err := InitKey(keyConf, prompt)
	if err != nil {
		return nil, err
	}
	backend, err := authenticode.NewCertBackend(cert, hash)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", keyName, err)
	}
	if !keyConf.Timestamp || opts.NoTimestamp {
		return backend, nil
	}
	tsconf, err := conf.GetTimestampConfig()
	if err != nil {
		return nil, err
	}
	ts, err := NewTimestamper(tsconf)
	if err != nil {
		return nil, err
	}
	return backend.WithTimestamper(ts), nil
}
