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

package reflector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/engine"
	"github.com/runtimeco/pipup/pkg/manifest"
	"github.com/runtimeco/pipup/pkg/version"
)

type stubRunner struct{ calls [][]string }

func (s *stubRunner) Run(name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	return nil, nil
}

func mustV(t *testing.T, s string) version.Version {
	v, err := version.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestReflectUpdatesManifestWhenNewer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	os.WriteFile(path, []byte("flask==3.0.2\n"), 0644)
	m := manifest.New([]string{path})

	run := &stubRunner{}
	r := New(m, nil, "", run, xlog.Nop{})

	history := map[string]*engine.UpgradeRecord{
		"flask": {HasUpgraded: true, UpgradedVersion: mustV(t, "3.0.3")},
	}
	reports := r.Reflect(history, nil)

	if len(reports) != 1 {
		t.Fatalf("expected one report, got %+v", reports)
	}
	out, _ := os.ReadFile(path)
	if string(out) != "flask==3.0.3\n" {
		t.Fatalf("manifest not updated: %s", out)
	}
}

func TestReflectSkipsWhenManifestPinIsNewer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	os.WriteFile(path, []byte("flask==3.0.5\n"), 0644)
	m := manifest.New([]string{path})
	run := &stubRunner{}
	r := New(m, nil, "", run, xlog.Nop{})

	history := map[string]*engine.UpgradeRecord{
		"flask": {HasUpgraded: true, UpgradedVersion: mustV(t, "3.0.3")},
	}
	r.Reflect(history, nil)

	out, _ := os.ReadFile(path)
	if string(out) != "flask==3.0.5\n" {
		t.Fatalf("manifest should be untouched: %s", out)
	}
}

func TestReflectBackfillsUntouchedTargets(t *testing.T) {
	m := manifest.New(nil)
	run := &stubRunner{}
	r := New(m, nil, "", run, xlog.Nop{})

	reports := r.Reflect(map[string]*engine.UpgradeRecord{}, []Target{
		{Name: "flask", Version: mustV(t, "3.0.3")},
	})
	if len(reports) != 1 || reports[0].Name != "flask" {
		t.Fatalf("expected backfilled report for flask, got %+v", reports)
	}
}

func TestReflectRecompilesBuildPinInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.in")
	os.WriteFile(path, []byte("flask==3.0.2\n"), 0644)
	m := manifest.New([]string{path})
	run := &stubRunner{}
	r := New(m, nil, "pip-compile", run, xlog.Nop{})

	history := map[string]*engine.UpgradeRecord{
		"flask": {HasUpgraded: true, UpgradedVersion: mustV(t, "3.0.3")},
	}
	r.Reflect(history, nil)

	if len(run.calls) != 1 || run.calls[0][0] != "pip-compile" {
		t.Fatalf("expected pip-compile invocation, got %+v", run.calls)
	}
}
