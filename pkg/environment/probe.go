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

// Package environment introspects the local package environment: what is
// installed, what a package's declared dependencies are, and what depends
// on a given package. It shells out to pip rather than linking a resolver,
// matching the source prototype's approach of scanning installed metadata.
package environment

import (
	"encoding/json"
	"strings"

	"github.com/runtimeco/pipup/internal/nerr"
	"github.com/runtimeco/pipup/internal/pexec"
	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/version"
)

// ForwardDep is a dependency declared by the currently installed version of
// some package: the dependency's name, its installed version (absent if
// not installed), and the specifier the declaring package imposes on it.
type ForwardDep struct {
	Name      string
	Installed version.Version
	HasInstalled bool
	Spec      version.SpecifierSet
}

// ReverseDep is a package in the environment that declares a dependency on
// some target: its name, its own installed version, and the constraint
// expression it imposes on the target (not yet isolated to a bare
// specifier — see resolver.StripName).
type ReverseDep struct {
	Name       string
	Installed  version.Version
	Constraint string
}

// Probe reports on the local package environment.
type Probe interface {
	// InstalledVersion returns the installed version of name and true, or
	// the zero Version and false if name is not installed.
	InstalledVersion(name string) (version.Version, bool, error)

	// ForwardDependencies returns every dependency the currently
	// installed version of name declares.
	ForwardDependencies(name string) ([]ForwardDep, error)

	// ReverseDependents returns every installed package that declares a
	// dependency on name.
	ReverseDependents(name string) ([]ReverseDep, error)
}

type pipProbe struct {
	run pexec.Runner
	log xlog.Logger
}

// New builds a Probe backed by `pip show` and `pip list --format=json`.
func New(run pexec.Runner, log xlog.Logger) Probe {
	return &pipProbe{run: run, log: log}
}

func (p *pipProbe) InstalledVersion(name string) (version.Version, bool, error) {
	out, err := p.run.Run("pip", "show", name)
	if err != nil {
		// pip show exits non-zero when the package is not installed; that
		// is a normal "not installed" result, not a probe failure.
		return version.Version{}, false, nil
	}
	fields := parseShowFields(string(out))
	raw, ok := fields["version"]
	if !ok {
		return version.Version{}, false, nil
	}
	v, err := version.Parse(raw)
	if err != nil {
		return version.Version{}, false, nerr.Wrapf(err, "pip show %s: unparseable version %q", name, raw)
	}
	return v, true, nil
}

func (p *pipProbe) ForwardDependencies(name string) ([]ForwardDep, error) {
	out, err := p.run.Run("pip", "show", name)
	if err != nil {
		return nil, nerr.Wrapf(err, "pip show %s failed", name)
	}
	fields := parseShowFields(string(out))
	requiresLine := fields["requires"]
	if strings.TrimSpace(requiresLine) == "" {
		return nil, nil
	}

	deps := make([]ForwardDep, 0)
	for _, dep := range strings.Split(requiresLine, ",") {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		// `pip show`'s Requires field lists bare distribution names, not
		// specifiers. The specifier the declaring package imposes has to
		// be read from its own metadata; shell out once more per
		// dependency to recover it from `pip show <dep>`'s reverse
		// "Required-by" isn't enough, so instead consult the declaring
		// package's own requirement via a second show call filtered for
		// this single dependency.
		spec, err := requiredSpecifier(p.run, name, dep)
		if err != nil {
			p.log.Warn("environment: could not determine specifier", "package", name, "dependency", dep, "err", err.Error())
			spec = version.SpecifierSet{}
		}

		installed, ok, err := p.InstalledVersion(dep)
		if err != nil {
			p.log.Warn("environment: probe failed for forward dependency", "dependency", dep, "err", err.Error())
			continue
		}
		deps = append(deps, ForwardDep{
			Name:         dep,
			Installed:    installed,
			HasInstalled: ok,
			Spec:         spec,
		})
	}
	return deps, nil
}

func (p *pipProbe) ReverseDependents(name string) ([]ReverseDep, error) {
	out, err := p.run.Run("pip", "list", "--format=json")
	if err != nil {
		return nil, nerr.Wrapf(err, "pip list failed")
	}

	var installed []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(out, &installed); err != nil {
		return nil, nerr.Wrapf(err, "could not decode pip list output")
	}

	deps := make([]ReverseDep, 0)
	for _, pkg := range installed {
		if pkgname.Equal(pkg.Name, name) {
			continue
		}
		showOut, err := p.run.Run("pip", "show", pkg.Name)
		if err != nil {
			p.log.Warn("environment: probe failed for reverse candidate", "package", pkg.Name, "err", err.Error())
			continue
		}
		fields := parseShowFields(string(showOut))
		requires := fields["requires"]
		constraint, ok := findRequirement(requires, name)
		if !ok {
			continue
		}
		v, err := version.Parse(pkg.Version)
		if err != nil {
			p.log.Warn("environment: unparseable installed version", "package", pkg.Name, "version", pkg.Version, "err", err.Error())
			continue
		}
		deps = append(deps, ReverseDep{
			Name:       pkg.Name,
			Installed:  v,
			Constraint: constraint,
		})
	}
	return deps, nil
}

// requiredSpecifier runs `pip show` on the declaring package and looks up
// dependency in its Requires field, parsing any specifier text glued to the
// name. pip's plain-text "Show" report lists bare names only, so in practice
// this returns the empty/"any" specifier, which never yields a spurious
// forward repair. Requires-Dist metadata is not consulted.
func requiredSpecifier(run pexec.Runner, declaring, dependency string) (version.SpecifierSet, error) {
	out, err := run.Run("pip", "show", declaring)
	if err != nil {
		return version.SpecifierSet{}, err
	}
	fields := parseShowFields(string(out))
	constraint, ok := findRequirement(fields["requires"], dependency)
	if !ok || constraint == "" {
		return version.SpecifierSet{}, nil
	}
	return version.ParseSpecifier(constraint)
}

// findRequirement looks for target (by canonical name) in a comma-separated
// Requires-style field and returns any trailing specifier text glued to it.
// pip's plain Requires field carries no specifiers, so this normally
// returns ("", true) on a name match; task manifests and requirement files
// elsewhere in this module carry the real specifier syntax this helper's
// signature anticipates for richer probe implementations.
func findRequirement(field, target string) (string, bool) {
	for _, entry := range strings.Split(field, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		namePart := entry
		for i, c := range entry {
			if !isNameChar(c) {
				namePart = entry[:i]
				break
			}
		}
		if pkgname.Equal(namePart, target) {
			return strings.TrimSpace(entry[len(namePart):]), true
		}
	}
	return "", false
}

func isNameChar(c rune) bool {
	return c == '-' || c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parseShowFields parses `pip show`'s "Key: value" report into a
// lower-cased field map.
func parseShowFields(out string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
	}
	return fields
}
