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

package timestampcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sassoftware/pesign/lib/pkcs9"
)

const memcacheExpiry = 7 * 24 * time.Hour

type cacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

type timestampCache struct {
	Timestamper pkcs9.Timestamper
	Memcache    cacheClient
}

// New wraps a timestamper with a memcache lookup keyed on the request's
// message imprint, so that re-signing identical signature bytes reuses the
// earlier token
func New(t pkcs9.Timestamper, servers []string, timeout time.Duration) (pkcs9.Timestamper, error) {
	selector := new(memcache.ServerList)
	if err := selector.SetServers(servers...); err != nil {
		return nil, errors.Wrap(err, "parsing memcache servers")
	}
	mc := memcache.NewFromSelector(selector)
	mc.Timeout = timeout
	return &timestampCache{t, mc}, nil
}

func (c *timestampCache) Timestamp(ctx context.Context, reqDER []byte) ([]byte, error) {
	req, err := pkcs9.ParseRequest(reqDER)
	if err != nil {
		return nil, err
	}
	key := cacheKey(req)
	if resp := c.get(ctx, key); resp != nil {
		zerolog.Ctx(ctx).Debug().Str("key", key).Msg("timestamp cache hit")
		return resp, nil
	}
	resp, err := c.Timestamper.Timestamp(ctx, reqDER)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, resp)
	return resp, nil
}

func cacheKey(req *pkcs9.TimeStampReq) string {
	d := sha256.New()
	d.Write([]byte(req.MessageImprint.HashAlgorithm.Algorithm.String()))
	d.Write(req.MessageImprint.HashedMessage)
	return fmt.Sprintf("pkcs9-%x", d.Sum(nil))
}

func (c *timestampCache) get(ctx context.Context, key string) []byte {
	item, err := c.Memcache.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil
	} else if err != nil {
		zerolog.Ctx(ctx).Warn().Err(errors.Wrap(err, "reading timestamp cache")).Str("key", key).Send()
		return nil
	}
	return item.Value
}

func (c *timestampCache) set(ctx context.Context, key string, resp []byte) {
	if err := c.Memcache.Set(&memcache.Item{
		Key:        key,
		Value:      resp,
		Expiration: int32(memcacheExpiry / time.Second),
	}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(errors.Wrap(err, "saving timestamp cache")).Str("key", key).Send()
	}
}
