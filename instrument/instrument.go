// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package instrument exposes the prometheus metrics endpoint.
package instrument

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/op/go-logging.v1"
)

var initOnce sync.Once

// Init exposes the registered metrics via HTTP on the given address.  A
// listener failure (bad address, port in use) is logged, an operator
// should not discover a missing metrics endpoint from the scraper side.
func Init(address string, log *logging.Logger) {
	initOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(address, mux); err != nil {
				if log != nil {
					log.Errorf("Metrics endpoint on %v failed: %v", address, err)
				}
			}
		}()
	})
}
