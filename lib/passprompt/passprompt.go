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

package passprompt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/howeyc/gopass"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// PasswordGetter obtains a password, typically by asking the user
type PasswordGetter interface {
	// GetPasswd returns the password, or io.EOF if none could be provided
	GetPasswd(prompt string) (string, error)
}

// LoginFunc tries a password and reports whether it was accepted
type LoginFunc func(string) (bool, error)

// PasswordPrompt reads passwords from the controlling terminal
type PasswordPrompt struct{}

func (PasswordPrompt) GetPasswd(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", io.EOF
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := gopass.GetPasswd()
	if errors.Is(err, gopass.ErrInterrupted) {
		return "", io.EOF
	} else if err != nil {
		return "", err
	}
	return string(pass), nil
}

// EnvPrompt returns the value of an environment variable, if set
type EnvPrompt struct {
	Name string
}

func (p EnvPrompt) GetPasswd(string) (string, error) {
	if value, ok := os.LookupEnv(p.Name); ok {
		return value, nil
	}
	return "", io.EOF
}

// Chain tries each getter in turn until one produces a password
type Chain []PasswordGetter

func (c Chain) GetPasswd(prompt string) (string, error) {
	for _, getter := range c {
		if getter == nil {
			continue
		}
		pass, err := getter.GetPasswd(prompt)
		if err == io.EOF {
			continue
		}
		return pass, err
	}
	return "", io.EOF
}

// Login repeatedly obtains a password and passes it to loginFunc until it
// succeeds. If keyringService is set then the system keyring is consulted
// first, and a password that works is saved there.
func Login(loginFunc LoginFunc, getter PasswordGetter, keyringService, keyringUser, initialPrompt, failPrefix string) error {
	if keyringService != "" {
		if pass, err := keyring.Get(keyringService, keyringUser); err == nil {
			if ok, err := loginFunc(pass); err != nil {
				return err
			} else if ok {
				return nil
			}
		} else if !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring: %w", err)
		}
	}
	if getter == nil {
		return io.EOF
	}
	prompt := initialPrompt
	for {
		pass, err := getter.GetPasswd(prompt)
		if err != nil {
			return err
		}
		ok, err := loginFunc(pass)
		if err != nil {
			return err
		} else if ok {
			if keyringService != "" {
				if err := keyring.Set(keyringService, keyringUser, pass); err != nil {
					return fmt.Errorf("keyring: %w", err)
				}
			}
			return nil
		}
		prompt = failPrefix + initialPrompt
	}
}
