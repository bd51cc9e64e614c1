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

package tsclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sassoftware/pesign/config"
	"github.com/sassoftware/pesign/lib/pkcs9"
	"github.com/sassoftware/pesign/lib/x509tools"
)

const maxResponseSize = 1 << 20

type tsClient struct {
	conf   *config.TimestampConfig
	client *http.Client
}

var (
	buckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	metricCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timestamper_request_count",
			Help: "Outcome of timestamper requests",
		},
		[]string{"code"},
	)
	metricDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timestamper_request_duration_seconds",
			Help:    "Histogram of timestamper request durations",
			Buckets: buckets,
		},
		nil,
	)
)

// New creates a timestamper that posts requests to each configured server in
// turn until one succeeds
func New(conf *config.TimestampConfig) (pkcs9.Timestamper, error) {
	if len(conf.URLs) == 0 {
		return nil, errors.New("timestamp.urls is empty")
	}
	tlsconf := &tls.Config{}
	if err := x509tools.LoadCertPool(conf.CaCert, tlsconf); err != nil {
		return nil, err
	}
	client := &http.Client{
		Timeout: conf.GetTimeout(),
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsconf,
		},
	}
	client.Transport = promhttp.InstrumentRoundTripperCounter(metricCount, client.Transport)
	client.Transport = promhttp.InstrumentRoundTripperDuration(metricDuration, client.Transport)
	return tsClient{conf, client}, nil
}

func (c tsClient) Timestamp(ctx context.Context, reqDER []byte) ([]byte, error) {
	req, err := pkcs9.ParseRequest(reqDER)
	if err != nil {
		return nil, err
	}
	for i, url := range c.conf.URLs {
		if i > 0 {
			zerolog.Ctx(ctx).Warn().Err(err).Str("url", url).Msg("timestamping failed, trying next server")
		}
		var body []byte
		body, err = c.do(ctx, url, req, reqDER)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("timestamping failed: %w", err)
}

func (c tsClient) do(ctx context.Context, url string, req *pkcs9.TimeStampReq, reqDER []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqDER))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/timestamp-query")
	httpReq.Header.Set("User-Agent", config.UserAgent)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
	if err != nil {
		return nil, err
	} else if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %s\n%s", url, resp.Status, body)
	}
	// reject a broken or replayed response here so the next server is tried
	tok, err := req.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	if err := req.CheckNonce(tok); err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return body, nil
}
