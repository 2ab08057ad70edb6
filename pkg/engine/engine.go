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

// Package engine is the iterative conflict-resolution core: a bounded
// fixed-point loop that repeatedly probes a shifting frontier of recently
// touched packages, computes forward- and reverse-violation repairs,
// installs them, and recomputes the next frontier as exactly the set of
// packages whose installed version changed. Grounded on
// newt/deprepo/deprepo.go's findClosestMatch, which runs the same
// shape of bounded "probe current state, check for failures, advance"
// loop over a one-shot version matrix; here it is generalized to an
// iterative probe-and-repair loop over live package installs, per the
// core's fixed-point semantics rather than a matrix search.
package engine

import (
	"sort"

	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/environment"
	"github.com/runtimeco/pipup/pkg/installer"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/resolver"
	"github.com/runtimeco/pipup/pkg/trail"
	"github.com/runtimeco/pipup/pkg/version"
)

// MaxIterations is the default hard ceiling on the loop, per spec.md §4.10.
const MaxIterations = 10

// UpgradeRecord captures a package's version before and after the engine
// touched it. PreviousLabel/UpgradedLabel carry the sentinel strings
// ("not installed", "direct installation", "install failed") the reflector
// and CLI summary render directly, per spec.md §3's data model.
type UpgradeRecord struct {
	PreviousVersion version.Version
	HasPrevious     bool
	PreviousLabel   string // overrides version display when non-empty

	UpgradedVersion version.Version
	HasUpgraded     bool
	UpgradedLabel   string
}

// Engine runs the bounded iteration loop.
type Engine struct {
	Probe     environment.Probe
	Installer installer.Installer
	Forward   *resolver.Forward
	Reverse   *resolver.Reverse
	Trail     *trail.Selector
	Log       xlog.Logger

	MaxIterations int // 0 means MaxIterations
}

// Run executes the loop starting from initialTargets (canonical names
// already installed at their pinned version by the caller) and returns the
// accumulated upgrade history.
func (e *Engine) Run(initialTargets []string) map[string]*UpgradeRecord {
	maxIter := e.MaxIterations
	if maxIter <= 0 {
		maxIter = MaxIterations
	}

	history := make(map[string]*UpgradeRecord)
	frontier := newSet(initialTargets)
	iter := 0

	for iter < maxIter && !frontier.empty() {
		iter++
		names := frontier.sortedNames()
		e.Log.Info("engine: iteration start", "iter", iter, "frontier", names)

		var forwardPins []resolver.Pin
		for _, p := range names {
			forwardPins = append(forwardPins, e.Forward.Resolve(p)...)
		}

		var reversePins []resolver.Pin
		for _, p := range names {
			installedV, ok, err := e.Probe.InstalledVersion(p)
			if err != nil {
				e.Log.Warn("engine: probe failed, skipping for this iteration", "package", p, "err", err.Error())
				continue
			}
			if !ok {
				// A missing-install target never contributes a trail probe.
				continue
			}
			for _, dep := range e.Reverse.Resolve(p, installedV) {
				depInstalled, depOK, err := e.Probe.InstalledVersion(dep)
				if err != nil || !depOK {
					e.Log.Warn("engine: reverse dependent has no installed version, skipping", "dependent", dep)
					continue
				}
				tr, err := e.Trail.Select(dep, depInstalled)
				if err != nil {
					e.Log.Warn("engine: trail lookup failed", "package", dep, "err", err.Error())
					continue
				}
				if !tr.Available {
					e.Log.Info("engine: no trail version available, skipping", "package", dep)
					continue
				}
				reversePins = append(reversePins, resolver.Pin{Name: dep, Version: tr.Mid, HasVersion: true})
			}
		}

		candidates := mergeCandidates(forwardPins, reversePins)
		if len(candidates) == 0 {
			break
		}

		nextFrontier := newSet(nil)
		for _, c := range sortedCandidates(candidates) {
			pinVersion, ok := c.Version, c.HasVersion
			if !ok {
				cur, curOK, _ := e.Probe.InstalledVersion(c.Name)
				if !curOK {
					cur = version.Version{}
				}
				tr, err := e.Trail.Select(c.Name, cur)
				if err != nil || !tr.Available {
					continue
				}
				pinVersion = tr.Mid
			}

			prev, prevOK, _ := e.Probe.InstalledVersion(c.Name)

			ok = e.Installer.Install(c.Name, pinVersion)

			rec := history[pkgname.Canonical(c.Name)]
			if rec == nil {
				rec = &UpgradeRecord{}
				history[pkgname.Canonical(c.Name)] = rec
			}
			rec.PreviousVersion = prev
			rec.HasPrevious = prevOK

			if !ok {
				rec.UpgradedLabel = "install failed"
				rec.HasUpgraded = false
				continue
			}

			post, postOK, _ := e.Probe.InstalledVersion(c.Name)
			rec.UpgradedVersion = post
			rec.HasUpgraded = postOK

			changed := !prevOK || !postOK || version.Compare(prev, post) != 0
			if changed {
				nextFrontier.add(c.Name)
			}
		}

		frontier = nextFrontier
	}

	return history
}

func mergeCandidates(forward, reverse []resolver.Pin) map[string]resolver.Pin {
	out := make(map[string]resolver.Pin)
	for _, p := range forward {
		out[pkgname.Canonical(p.Name)] = p
	}
	for _, p := range reverse {
		key := pkgname.Canonical(p.Name)
		if existing, ok := out[key]; ok {
			// A package that is both a forward repair and a reverse
			// repair keeps its forward (already-version-resolved) pin;
			// the reverse pin's trail guess is redundant once a
			// concrete forward version is known.
			_ = existing
			continue
		}
		out[key] = p
	}
	return out
}

func sortedCandidates(m map[string]resolver.Pin) []resolver.Pin {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]resolver.Pin, 0, len(names))
	for _, n := range names {
		out = append(out, m[n])
	}
	return out
}

type nameSet struct {
	names map[string]struct{}
}

func newSet(names []string) *nameSet {
	s := &nameSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *nameSet) add(name string) {
	s.names[pkgname.Canonical(name)] = struct{}{}
}

func (s *nameSet) empty() bool {
	return len(s.names) == 0
}

func (s *nameSet) sortedNames() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
