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

package engine

import (
	"fmt"
	"testing"

	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/environment"
	"github.com/runtimeco/pipup/pkg/manifest"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/resolver"
	"github.com/runtimeco/pipup/pkg/trail"
	"github.com/runtimeco/pipup/pkg/version"
)

// fakeProbe lets tests drive installed versions directly and have
// InstalledVersion reflect installer.Install calls routed through it.
type fakeProbe struct {
	installed map[string]version.Version
	forward   map[string][]environment.ForwardDep
	reverse   map[string][]environment.ReverseDep
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{
		installed: make(map[string]version.Version),
		forward:   make(map[string][]environment.ForwardDep),
		reverse:   make(map[string][]environment.ReverseDep),
	}
}

func (f *fakeProbe) InstalledVersion(name string) (version.Version, bool, error) {
	v, ok := f.installed[pkgname.Canonical(name)]
	return v, ok, nil
}
func (f *fakeProbe) ForwardDependencies(name string) ([]environment.ForwardDep, error) {
	return f.forward[pkgname.Canonical(name)], nil
}
func (f *fakeProbe) ReverseDependents(name string) ([]environment.ReverseDep, error) {
	return f.reverse[pkgname.Canonical(name)], nil
}

type fakeIndex struct {
	versions map[string][]string
}

func (f *fakeIndex) FetchVersions(name string) ([]version.Version, error) {
	var out []version.Version
	for _, raw := range f.versions[pkgname.Canonical(name)] {
		v, err := version.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	version.Sort(out)
	return out, nil
}

// fakeInstaller installs by mutating the shared fakeProbe's installed map,
// so the engine observes its own writes on the next probe, matching the
// real pip-backed installer/probe pair's behavior.
type fakeInstaller struct {
	probe   *fakeProbe
	fail    map[string]bool
	installs []string
}

func (f *fakeInstaller) Install(name string, v version.Version) bool {
	f.installs = append(f.installs, name+"=="+v.String())
	if f.fail[pkgname.Canonical(name)] {
		return false
	}
	f.probe.installed[pkgname.Canonical(name)] = v
	return true
}

func mustV(t *testing.T, s string) version.Version {
	v, err := version.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func mustSpec(t *testing.T, s string) version.SpecifierSet {
	set, err := version.ParseSpecifier(s)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func newTestEngine(t *testing.T, probe *fakeProbe, idx *fakeIndex, install *fakeInstaller, maxIter int) *Engine {
	m := manifest.New(nil)
	return &Engine{
		Probe:         probe,
		Installer:     install,
		Forward:       &resolver.Forward{Probe: probe, Index: idx, Manifest: m, Log: xlog.Nop{}},
		Reverse:       &resolver.Reverse{Probe: probe, Log: xlog.Nop{}},
		Trail:         trail.New(idx),
		Log:           xlog.Nop{},
		MaxIterations: maxIter,
	}
}

// TestTerminationOnEmptyH reproduces seed scenario 3: target already at the
// latest version, no forward or reverse repairs.
func TestTerminationOnEmptyH(t *testing.T) {
	probe := newFakeProbe()
	probe.installed["target"] = mustV(t, "10.0.0")
	idx := &fakeIndex{versions: map[string][]string{"target": {"10.0.0"}}}
	install := &fakeInstaller{probe: probe}

	e := newTestEngine(t, probe, idx, install, 0)
	history := e.Run([]string{"target"})

	if len(install.installs) != 0 {
		t.Fatalf("expected zero installs, got %v", install.installs)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty upgrade history, got %+v", history)
	}
}

// TestInstallFailureDoesNotReenterFrontier reproduces seed scenario 4.
func TestInstallFailureDoesNotReenterFrontier(t *testing.T) {
	probe := newFakeProbe()
	probe.installed["a"] = mustV(t, "1.0.0")
	probe.forward["a"] = []environment.ForwardDep{{
		Name: "x", Installed: mustV(t, "1.0.0"), HasInstalled: true,
		Spec: mustSpec(t, ">=2.0"),
	}}
	// x has its own violated dependency, so x entering the frontier would
	// show up as an install of y in the next iteration.
	probe.installed["y"] = mustV(t, "1.0.0")
	probe.forward["x"] = []environment.ForwardDep{{
		Name: "y", Installed: mustV(t, "1.0.0"), HasInstalled: true,
		Spec: mustSpec(t, ">=2.0"),
	}}
	idx := &fakeIndex{versions: map[string][]string{
		"x": {"1.0.0", "2.0.0"},
		"y": {"1.0.0", "2.0.0"},
	}}
	install := &fakeInstaller{probe: probe, fail: map[string]bool{"x": true}}

	e := newTestEngine(t, probe, idx, install, 0)
	history := e.Run([]string{"a"})

	for _, in := range install.installs {
		if in == "y==2.0.0" {
			t.Fatalf("x re-entered the frontier after a failed install: %v", install.installs)
		}
	}

	rec, ok := history["x"]
	if !ok {
		t.Fatalf("expected history entry for x, got %+v", history)
	}
	if rec.UpgradedLabel != "install failed" {
		t.Fatalf("expected install-failed label, got %+v", rec)
	}
	if rec.PreviousVersion.String() != "1.0.0" {
		t.Fatalf("expected previous version captured, got %+v", rec)
	}
}

// TestIterationCap reproduces seed scenario 6: a cyclic constraint
// environment that would produce a new candidate every iteration. a and b
// each declare an unsatisfiable constraint on the other, so every
// iteration trail-upgrades both; with 4096 index versions the trail needs
// 12 iterations to reach the latest, so the loop stops at the cap.
func TestIterationCap(t *testing.T) {
	probe := newFakeProbe()
	probe.installed["a"] = mustV(t, "1.0.0")
	probe.installed["b"] = mustV(t, "1.0.0")
	probe.reverse["a"] = []environment.ReverseDep{{Name: "b", Installed: mustV(t, "1.0.0"), Constraint: "a<0.5"}}
	probe.reverse["b"] = []environment.ReverseDep{{Name: "a", Installed: mustV(t, "1.0.0"), Constraint: "b<0.5"}}
	var all []string
	for i := 1; i <= 4096; i++ {
		all = append(all, fmt.Sprintf("%d.0.0", i))
	}
	idx := &fakeIndex{versions: map[string][]string{"a": all, "b": all}}
	install := &fakeInstaller{probe: probe}

	e := newTestEngine(t, probe, idx, install, MaxIterations)
	history := e.Run([]string{"a", "b"})

	if len(history) == 0 {
		t.Fatal("expected non-empty upgrade history")
	}
	// Two installs per iteration, for exactly MaxIterations iterations.
	if len(install.installs) != 2*MaxIterations {
		t.Fatalf("expected %d installs, got %d: %v", 2*MaxIterations, len(install.installs), install.installs)
	}
	// Trail index sequence from 0: 2048, 3072, 3584, 3840, 3968, 4032,
	// 4064, 4080, 4088, 4092 -> version 4093.0.0 after ten iterations.
	if got := history["a"].UpgradedVersion.String(); got != "4093.0.0" {
		t.Fatalf("expected a at 4093.0.0 after the cap, got %s", got)
	}
}

// TestReverseConflictResolvedByTrail reproduces seed scenario 2: D==3.0.0
// declares T<9.0 while T==10.0.0 is installed, so D is upgraded to its
// trail version 4.0.0.
func TestReverseConflictResolvedByTrail(t *testing.T) {
	probe := newFakeProbe()
	probe.installed["t"] = mustV(t, "10.0.0")
	probe.installed["d"] = mustV(t, "3.0.0")
	probe.reverse["t"] = []environment.ReverseDep{{Name: "d", Installed: mustV(t, "3.0.0"), Constraint: "t<9.0"}}
	idx := &fakeIndex{versions: map[string][]string{
		"d": {"3.0.0", "3.1.0", "4.0.0", "5.0.0"},
		"t": {"10.0.0"},
	}}
	install := &fakeInstaller{probe: probe}

	e := newTestEngine(t, probe, idx, install, 1)
	history := e.Run([]string{"t"})

	rec, ok := history["d"]
	if !ok || rec.UpgradedVersion.String() != "4.0.0" {
		t.Fatalf("expected d upgraded to trail 4.0.0, got %+v", history)
	}
}
