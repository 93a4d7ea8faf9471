/*
 *     Copyright 2022 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search/config"
)

func TestMetrics_New(t *testing.T) {
	assert := assert.New(t)
	svr := New(&config.MetricsConfig{Enable: true, Addr: ":9999"})
	assert.Equal(":9999", svr.Addr)

	JobCount.WithLabelValues(types.GridSearchMode.String()).Inc()

	w := httptest.NewRecorder()
	svr.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	assert.NoError(err)
	assert.Contains(string(body), "hypersearch_worker_job_total")
	assert.Contains(string(body), "hypersearch_search_version")
}
