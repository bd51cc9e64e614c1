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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sassoftware/pesign/signers/sigerrors"
)

const (
	defaultTimeout         = 60
	defaultMemcacheTimeout = 5
	defaultDigest          = "SHA256"
)

var (
	Version   = "unknown"
	Commit    = "unknown"
	UserAgent = "pesign/unknown"
)

type KeyConfig struct {
	Certificate string `yaml:"certificate"` // Path to certificate chain, or PKCS#12 bundle
	Key         string `yaml:"key"`         // Path to private key; omitted for PKCS#12
	PKCS12      bool   `yaml:"pkcs12"`      // Certificate is a PKCS#12 bundle holding the key
	UseKeyring  bool   `yaml:"use_keyring"` // Look up the key password in the OS keyring
	Timestamp   bool   `yaml:"timestamp"`   // Timestamp signatures made with this key
	Digest      string `yaml:"digest"`      // Digest algorithm, default SHA256

	name string
}

type TimestampConfig struct {
	URLs    []string `yaml:"urls"`    // RFC 3161 servers, tried in order
	Timeout int      `yaml:"timeout"` // Per-request timeout in seconds
	CaCert  string   `yaml:"cacert"`  // CA bundle for HTTPS servers

	RateLimit float64 `yaml:"ratelimit"` // Requests per second, 0 to disable
	RateBurst int     `yaml:"rateburst"`

	Memcache        []string `yaml:"memcache"`        // Cache responses in these memcache servers
	MemcacheTimeout int      `yaml:"memcachetimeout"` // Seconds
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // "-" for JSON on stderr, empty for console
}

type Config struct {
	Keys      map[string]*KeyConfig `yaml:"keys"`
	Timestamp *TimestampConfig      `yaml:"timestamp"`
	Logging   LoggingConfig         `yaml:"logging"`

	path string
}

// ReadFile loads and normalizes a YAML configuration file
func ReadFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(blob, path)
}

// Parse decodes configuration from a blob. Relative paths are resolved
// against the directory holding path.
func Parse(blob []byte, path string) (*Config, error) {
	config := new(Config)
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	config.path = path
	return config, config.Normalize()
}

// Normalize fills in defaults and resolves relative paths
func (config *Config) Normalize() error {
	baseDir := filepath.Dir(config.path)
	for keyName, keyConf := range config.Keys {
		if keyConf == nil {
			return fmt.Errorf("key %q has no settings", keyName)
		}
		keyConf.name = keyName
		if keyConf.Digest == "" {
			keyConf.Digest = defaultDigest
		}
		keyConf.Certificate = resolvePath(baseDir, keyConf.Certificate)
		keyConf.Key = resolvePath(baseDir, keyConf.Key)
	}
	if ts := config.Timestamp; ts != nil {
		if ts.Timeout == 0 {
			ts.Timeout = defaultTimeout
		}
		if ts.MemcacheTimeout == 0 {
			ts.MemcacheTimeout = defaultMemcacheTimeout
		}
		if ts.RateLimit < 0 {
			return errors.New("timestamp.ratelimit must not be negative")
		}
		ts.CaCert = resolvePath(baseDir, ts.CaCert)
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Path returns the file the configuration was loaded from
func (config *Config) Path() string {
	return config.path
}

func (config *Config) GetKey(keyName string) (*KeyConfig, error) {
	keyConf, ok := config.Keys[keyName]
	if !ok {
		return nil, sigerrors.KeyNotFoundError{Name: keyName}
	} else if keyConf.Certificate == "" {
		return nil, fmt.Errorf("key %q does not specify required value 'certificate'", keyName)
	} else if keyConf.Key == "" && !keyConf.PKCS12 {
		return nil, fmt.Errorf("key %q needs either 'key' or 'pkcs12: true'", keyName)
	}
	return keyConf, nil
}

func (config *Config) GetTimestampConfig() (*TimestampConfig, error) {
	if config.Timestamp == nil || len(config.Timestamp.URLs) == 0 {
		return nil, errors.New("timestamp.urls is not configured")
	}
	return config.Timestamp, nil
}

func (keyConf *KeyConfig) Name() string {
	return keyConf.name
}

func (tconf *TimestampConfig) GetTimeout() time.Duration {
	return time.Duration(tconf.Timeout) * time.Second
}

func (tconf *TimestampConfig) GetMemcacheTimeout() time.Duration {
	return time.Duration(tconf.MemcacheTimeout) * time.Second
}
