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

// Package reflector applies the upgrade history the engine produced back
// into source-controlled manifests: plain requirement pins via
// pkg/manifest, and Ansible-style task entries via pkg/taskmanifest.
// Recovered from pin_dependencies.py's final "write the new pin back to
// the requirements file" step, generalized here to also cover build-pin
// recompilation and task manifests.
package reflector

import (
	"strings"

	"github.com/runtimeco/pipup/internal/pexec"
	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/engine"
	"github.com/runtimeco/pipup/pkg/manifest"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/taskmanifest"
	"github.com/runtimeco/pipup/pkg/version"
)

// ManifestResult reports what happened to one requirement manifest for one
// package.
type ManifestResult struct {
	Path    string
	Updated bool
	Err     error
}

// TaskResult reports the four-way C6 outcome for one task manifest.
type TaskResult struct {
	Path    string
	Outcome taskmanifest.Outcome
}

// Report is the full reflection result for one package.
type Report struct {
	Name      string
	Manifests []ManifestResult
	Tasks     []TaskResult
}

// Reflector applies an engine.Run history to the configured manifests.
type Reflector struct {
	Manifest     *manifest.Store
	TaskPaths    []string
	PinCompiler  string // external pip-compile-compatible binary; "" disables regen
	Run          pexec.Runner
	Log          xlog.Logger
}

// New builds a Reflector.
func New(m *manifest.Store, taskPaths []string, pinCompiler string, run pexec.Runner, log xlog.Logger) *Reflector {
	return &Reflector{Manifest: m, TaskPaths: taskPaths, PinCompiler: pinCompiler, Run: run, Log: log}
}

// Target is one of the user-requested pins, supplied so the reflector can
// backfill history for targets the engine's loop never touched (they were
// already at the requested pin, or installed once and never re-entered the
// frontier).
type Target struct {
	Name    string
	Version version.Version
}

// Reflect merges targets into history (direct-installation entries for
// anything the loop didn't already record), then applies every entry to
// every configured requirement manifest and task manifest, returning one
// Report per package touched.
func (r *Reflector) Reflect(history map[string]*engine.UpgradeRecord, targets []Target) []Report {
	merged := make(map[string]*engine.UpgradeRecord, len(history))
	for k, v := range history {
		merged[k] = v
	}
	for _, t := range targets {
		key := pkgname.Canonical(t.Name)
		if _, ok := merged[key]; ok {
			continue
		}
		merged[key] = &engine.UpgradeRecord{
			PreviousLabel:   "direct installation",
			UpgradedVersion: t.Version,
			HasUpgraded:     true,
		}
	}

	var reports []Report
	for name, rec := range merged {
		if !rec.HasUpgraded {
			// Install failed; nothing to reflect back.
			continue
		}
		newV := rec.UpgradedVersion

		report := Report{Name: name}
		for _, path := range r.Manifest.Paths {
			cur, ok, err := r.Manifest.GetPin(path, name)
			if err != nil {
				report.Manifests = append(report.Manifests, ManifestResult{Path: path, Err: err})
				continue
			}
			if !ok || !version.Less(cur, newV) {
				continue
			}
			updated, err := r.Manifest.SetPin(path, name, newV)
			report.Manifests = append(report.Manifests, ManifestResult{Path: path, Updated: updated, Err: err})
			if err == nil && updated && isBuildPinInput(path) {
				r.recompile(path)
			}
		}

		for _, path := range r.TaskPaths {
			res := taskmanifest.SetPin(path, name, newV.String())
			report.Tasks = append(report.Tasks, TaskResult{Path: path, Outcome: res.Outcome})
		}

		reports = append(reports, report)
	}
	return reports
}

// isBuildPinInput identifies a pip-compile style input file by the `.in`
// suffix convention, recovered from the original requirements/*.in layout.
func isBuildPinInput(path string) bool {
	return strings.HasSuffix(path, ".in")
}

// recompile regenerates a build-pin input's compiled companion via the
// configured external pip-compile-compatible binary, with the
// "allow-unsafe" policy per spec.md §4.11. A missing PinCompiler disables
// regeneration silently — it is an optional step.
func (r *Reflector) recompile(inputPath string) {
	if r.PinCompiler == "" {
		return
	}
	if _, err := r.Run.Run(r.PinCompiler, "--allow-unsafe", inputPath); err != nil {
		r.Log.Warn("reflector: pin compiler failed", "input", inputPath, "err", err.Error())
	}
}
