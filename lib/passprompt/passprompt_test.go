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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type fixedPrompt struct {
	answers []string
	asked   []string
}

func (p *fixedPrompt) GetPasswd(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func checkPass(want string) LoginFunc {
	return func(got string) (bool, error) {
		return got == want, nil
	}
}

func TestLoginRetries(t *testing.T) {
	prompt := &fixedPrompt{answers: []string{"wrong", "right"}}
	err := Login(checkPass("right"), prompt, "", "", "Password: ", "Incorrect\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"Password: ", "Incorrect\nPassword: "}, prompt.asked)
}

func TestLoginExhausted(t *testing.T) {
	prompt := &fixedPrompt{answers: []string{"wrong"}}
	err := Login(checkPass("right"), prompt, "", "", "Password: ", "")
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, io.EOF, Login(checkPass("right"), nil, "", "", "", ""))
}

func TestLoginKeyring(t *testing.T) {
	keyring.MockInit()
	prompt := &fixedPrompt{answers: []string{"right"}}
	require.NoError(t, Login(checkPass("right"), prompt, "pesign", "test.key", "Password: ", ""))
	saved, err := keyring.Get("pesign", "test.key")
	require.NoError(t, err)
	assert.Equal(t, "right", saved)
	// second login is satisfied from the keyring without prompting
	prompt = &fixedPrompt{}
	require.NoError(t, Login(checkPass("right"), prompt, "pesign", "test.key", "Password: ", ""))
	assert.Empty(t, prompt.asked)
}

func TestChain(t *testing.T) {
	t.Setenv("PESIGN_TEST_PASSWORD", "fromenv")
	pass, err := Chain{EnvPrompt{Name: "PESIGN_TEST_UNSET_VARIABLE"}, nil, EnvPrompt{Name: "PESIGN_TEST_PASSWORD"}}.GetPasswd("")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", pass)
	_, err = Chain{}.GetPasswd("")
	assert.Equal(t, io.EOF, err)
}
