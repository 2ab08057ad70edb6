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

package cli

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/runtimeco/pipup/internal/nerr"
	"github.com/runtimeco/pipup/pkg/engine"
)

type handoffEntry struct {
	Previous string `yaml:"previous_version"`
	Upgraded string `yaml:"upgraded_version"`
}

// writeHandoff serializes the engine's upgrade history to path as a
// mapping name -> {previous_version, upgraded_version}, per spec.md §6's
// handoff file contract.
func writeHandoff(path string, history map[string]*engine.UpgradeRecord) error {
	out := make(map[string]handoffEntry, len(history))
	for name, rec := range history {
		entry := handoffEntry{}
		if rec.PreviousLabel != "" {
			entry.Previous = rec.PreviousLabel
		} else if rec.HasPrevious {
			entry.Previous = rec.PreviousVersion.String()
		} else {
			entry.Previous = "not installed"
		}
		if rec.UpgradedLabel != "" {
			entry.Upgraded = rec.UpgradedLabel
		} else if rec.HasUpgraded {
			entry.Upgraded = rec.UpgradedVersion.String()
		} else {
			entry.Upgraded = "install failed"
		}
		out[name] = entry
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nerr.Wrapf(err, "could not marshal handoff history")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nerr.Wrapf(err, "could not write handoff file %s", path)
	}
	return nil
}
