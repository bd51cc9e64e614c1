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
	"github.com/sassoftware/pesign/config"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/pkcs9/ratelimit"
	"github.com/sassoftware/pesign/lib/pkcs9/timestampcache"
	"github.com/sassoftware/pesign/lib/pkcs9/tsclient"
)

// NewTimestamper builds the timestamp client stack: the HTTP client, then
// the rate limiter and response cache if configured
func NewTimestamper(tsconf *config.TimestampConfig) (timestamper pkcs9.Timestamper, err error) {
	timestamper, err = tsclient.New(tsconf)
	if err != nil {
		return nil, err
	}
	if tsconf.RateLimit != 0 {
		timestamper = ratelimit.New(timestamper, tsconf.RateLimit, tsconf.RateBurst)
	}
	if len(tsconf.Memcache) != 0 {
		timestamper, err = timestampcache.New(timestamper, tsconf.Memcache, tsconf.GetMemcacheTimeout())
		if err != nil {
			return nil, err
		}
	}
	return timestamper, nil
}
