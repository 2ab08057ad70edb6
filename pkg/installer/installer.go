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

// Package installer installs a single name==version pin without resolving
// or touching transitive dependencies.
package installer

import (
	"github.com/runtimeco/pipup/internal/pexec"
	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/version"
)

// Installer installs exact version pins.
type Installer interface {
	// Install attempts to make v the installed version of name. It
	// returns false (never an error) on installer rejection — the
	// iteration engine treats a failed install as "no change", not as a
	// fatal condition.
	Install(name string, v version.Version) bool
}

type pipInstaller struct {
	run pexec.Runner
	log xlog.Logger
}

// New builds an Installer backed by `pip install --no-deps`.
func New(run pexec.Runner, log xlog.Logger) Installer {
	return &pipInstaller{run: run, log: log}
}

func (i *pipInstaller) Install(name string, v version.Version) bool {
	pin := name + "==" + v.String()
	if _, err := i.run.Run("pip", "install", "--no-deps", pin); err != nil {
		i.log.Warn("installer: install failed", "pin", pin, "err", err.Error())
		return false
	}
	i.log.Info("installer: installed", "pin", pin)
	return true
}
