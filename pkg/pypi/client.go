/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package pypi queries the PyPI JSON API for a package's known release
// versions. Malformed release keys are dropped and logged rather than
// failing the whole query, since an index can carry stray non-PEP-440
// artifacts (yanked or legacy uploads) alongside well-formed ones.
package pypi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/runtimeco/pipup/internal/nerr"
	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/version"
)

const defaultIndexURL = "https://pypi.org/pypi"

const defaultCacheSize = 256

// Client fetches the set of published versions for a package.
type Client interface {
	// FetchVersions returns the versions PyPI has published for name,
	// ascending, with malformed release keys, releases with no uploaded
	// files, and releases whose files are all yanked dropped. A network,
	// status or decode failure is reported as an *nerr.PipupError;
	// callers in the engine treat that as a skip, not a fatal error.
	FetchVersions(name string) ([]version.Version, error)
}

// HTTPDoer is the subset of *http.Client the index client needs, so tests
// can inject a stub instead of hitting the network.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type client struct {
	indexURL string
	http     HTTPDoer
	log      xlog.Logger
	cache    *lru.Cache[string, []version.Version]
}

// New builds a Client backed by the real PyPI JSON API at
// https://pypi.org/pypi/<name>/json, caching results for the lifetime of
// the process so the forward and reverse resolvers probing the same
// package within one iteration don't re-fetch it.
func New(log xlog.Logger) Client {
	return NewWithIndexURL(defaultIndexURL, log)
}

// NewWithIndexURL is New with an overridable index base URL, for tests and
// for pointing at a private index mirror.
func NewWithIndexURL(indexURL string, log xlog.Logger) Client {
	c, err := lru.New[string, []version.Version](defaultCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which defaultCacheSize
		// never is.
		panic(err)
	}
	return &client{
		indexURL: indexURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
		cache:    c,
	}
}

type indexResponse struct {
	Releases map[string][]struct {
		YankedReason string `json:"yanked_reason"`
		Yanked       bool   `json:"yanked"`
	} `json:"releases"`
}

func (c *client) FetchVersions(name string) ([]version.Version, error) {
	key := pkgname.Canonical(name)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	url := fmt.Sprintf("%s/%s/json", c.indexURL, key)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nerr.Wrapf(errors.WithStack(err), "could not build request for %s", name)
	}

	c.log.Info("pypi: fetching index", "package", name, "url", url)

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, nerr.Wrapf(errors.WithStack(err), "index request failed for %s", name)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusNotFound {
		return nil, nerr.Newf("package %q not found on index", name)
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, nerr.Newf("index returned status %d for %s", rsp.StatusCode, name)
	}

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, nerr.Wrapf(errors.WithStack(err), "could not read index response for %s", name)
	}

	var parsed indexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nerr.Wrapf(errors.WithStack(err), "could not decode index response for %s", name)
	}

	versions := make([]version.Version, 0, len(parsed.Releases))
	for raw, files := range parsed.Releases {
		if len(files) == 0 {
			// No uploaded files for this release key; PyPI carries these
			// for registered-but-never-released versions.
			continue
		}
		if allYanked(files) {
			continue
		}
		v, err := version.Parse(raw)
		if err != nil {
			c.log.Warn("pypi: dropping unparseable release", "package", name, "version", raw, "err", err.Error())
			continue
		}
		versions = append(versions, v)
	}

	version.Sort(versions)
	c.cache.Add(key, versions)
	return versions, nil
}

func allYanked(files []struct {
	YankedReason string `json:"yanked_reason"`
	Yanked       bool   `json:"yanked"`
}) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}
