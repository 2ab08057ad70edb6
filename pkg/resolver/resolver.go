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

// Package resolver computes the two kinds of repair candidate the
// iteration engine acts on: forward repairs (a package's own dependencies
// have drifted out of spec) and reverse repairs (packages that depend on
// it have had their own constraint on it broken). Both walk a
// per-package requirement view and accumulate violations, the same shape
// as newt/deprepo's matrix-pruning walk, generalized from a one-shot
// repo-version matrix to a single package's live dependency edges.
package resolver

import (
	"strings"

	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/environment"
	"github.com/runtimeco/pipup/pkg/manifest"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/pypi"
	"github.com/runtimeco/pipup/pkg/version"
)

// Pin is a repair candidate: either a fully resolved name==version, or a
// bare name awaiting a trail-version decision by the caller (C10).
type Pin struct {
	Name       string
	Version    version.Version
	HasVersion bool
}

// Forward is the forward-conflict resolver (C7): for package p, enumerate
// its forward dependencies and emit a repair pin for every one whose
// installed version violates the declared specifier.
type Forward struct {
	Probe    environment.Probe
	Index    pypi.Client
	Manifest *manifest.Store
	Log      xlog.Logger
}

// Resolve implements spec.md §4.7.
func (f *Forward) Resolve(p string) []Pin {
	deps, err := f.Probe.ForwardDependencies(p)
	if err != nil {
		f.Log.Warn("resolver: forward probe failed", "package", p, "err", err.Error())
		return nil
	}

	var pins []Pin
	for _, d := range deps {
		if !d.HasInstalled {
			continue
		}
		if d.Spec.IsAny() {
			continue
		}
		if version.Contains(d.Spec, d.Installed) {
			continue
		}

		pyV, pyOK := minimalSatisfying(f.Index, d.Name, d.Spec, f.Log)
		reqV, _, reqOK := f.Manifest.MaxPinAcross(d.Name)

		chosen, ok := chooseRepair(pyV, pyOK, reqV, reqOK)
		if !ok {
			f.Log.Warn("resolver: no repair candidate for forward violation",
				"package", p, "dependency", d.Name, "spec", d.Spec)
			continue
		}
		pins = append(pins, Pin{Name: d.Name, Version: chosen, HasVersion: true})
	}
	return pins
}

func minimalSatisfying(idx pypi.Client, name string, spec version.SpecifierSet, log xlog.Logger) (version.Version, bool) {
	versions, err := idx.FetchVersions(name)
	if err != nil {
		log.Warn("resolver: index query failed", "package", name, "err", err.Error())
		return version.Version{}, false
	}
	for _, v := range versions { // ascending
		if version.Contains(spec, v) {
			return v, true
		}
	}
	return version.Version{}, false
}

func chooseRepair(pyV version.Version, pyOK bool, reqV version.Version, reqOK bool) (version.Version, bool) {
	switch {
	case pyOK && reqOK:
		if version.Less(pyV, reqV) {
			return reqV, true
		}
		return pyV, true
	case reqOK:
		return reqV, true
	case pyOK:
		return pyV, true
	default:
		return version.Version{}, false
	}
}

// Reverse is the reverse-conflict resolver (C8): for target T, enumerate
// dependents whose own constraint on T is violated by T's current
// installed version, emitting the dependent names (the repair version is
// chosen later, by the trail selector).
type Reverse struct {
	Probe environment.Probe
	Log   xlog.Logger
}

// Resolve implements spec.md §4.8.
func (r *Reverse) Resolve(target string, installed version.Version) []string {
	deps, err := r.Probe.ReverseDependents(target)
	if err != nil {
		r.Log.Warn("resolver: reverse probe failed", "target", target, "err", err.Error())
		return nil
	}

	var violators []string
	for _, d := range deps {
		stripped := StripName(d.Constraint, target)
		if strings.TrimSpace(stripped) == "" {
			continue
		}
		spec, err := version.ParseSpecifier(stripped)
		if err != nil {
			r.Log.Warn("resolver: unparseable reverse constraint", "dependent", d.Name, "constraint", d.Constraint, "err", err.Error())
			continue
		}
		if version.Contains(spec, installed) {
			continue
		}
		violators = append(violators, d.Name)
	}
	return violators
}

// StripName removes a leading copy of target's canonical name from a raw
// constraint expression (e.g. "target<9.0" → "<9.0"), isolating the bare
// specifier for parsing.
func StripName(constraint, target string) string {
	trimmed := strings.TrimSpace(constraint)
	canon := pkgname.Canonical(target)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, canon) {
		return strings.TrimSpace(trimmed[len(canon):])
	}
	// The constraint may carry the name in its original, non-canonical
	// casing/separator form; fall back to trimming everything up to the
	// first specifier operator character.
	for i, c := range trimmed {
		if c == '=' || c == '!' || c == '<' || c == '>' || c == '~' {
			return trimmed[i:]
		}
	}
	return ""
}
