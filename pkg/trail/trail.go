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

// Package trail picks a graduated upgrade target for a package given a
// baseline version already known to be violated: not necessarily the
// latest release, but a mid-index point between the first version past
// the baseline and the latest, favoring convergence over aggression.
// Grounded on newt/newtutil/repo_version.go's SortVersions/SortedVersionsDesc,
// which the teacher uses the same way: sort once, then index into the
// sorted slice rather than re-deriving order on every query.
package trail

import (
	"github.com/runtimeco/pipup/pkg/pypi"
	"github.com/runtimeco/pipup/pkg/version"
)

// Selector picks trail versions using an index client.
type Selector struct {
	Index pypi.Client
}

// New builds a Selector over idx.
func New(idx pypi.Client) *Selector {
	return &Selector{Index: idx}
}

// Trail is the result of a trail query: the first version on the index
// strictly greater than the reference, the latest available version, and
// the mid-index version between them. Available is false if no version on
// the index exceeds the reference (termination signal).
type Trail struct {
	First     version.Version
	Latest    version.Version
	Mid       version.Version
	Available bool
}

// Select implements spec.md §4.9 for package p against baseline vRef.
func (s *Selector) Select(p string, vRef version.Version) (Trail, error) {
	all, err := s.Index.FetchVersions(p)
	if err != nil {
		return Trail{}, err
	}

	firstIdx := -1
	for i, v := range all {
		if version.Compare(v, vRef) > 0 {
			firstIdx = i
			break
		}
	}
	if firstIdx == -1 {
		return Trail{}, nil
	}
	latestIdx := len(all) - 1
	midIdx := (firstIdx + latestIdx) / 2

	return Trail{
		First:     all[firstIdx],
		Latest:    all[latestIdx],
		Mid:       all[midIdx],
		Available: true,
	}, nil
}
