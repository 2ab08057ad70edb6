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

// Package pexec spawns the external processes (pip, a pin-compiler) that
// C3/C4 and the reflector sit in front of.  All callers go through this
// package rather than os/exec directly, so command logging and error
// wrapping stay in one place.  The index client (C2) uses net/http instead.
package pexec

import (
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"

	"github.com/runtimeco/pipup/internal/nerr"
	"github.com/runtimeco/pipup/internal/xlog"
)

// Runner executes argv-style commands and returns their combined
// stdout+stderr.  The interface exists so C3/C4 tests can substitute a fake
// without spawning real processes.
type Runner interface {
	Run(name string, args ...string) ([]byte, error)
}

type execRunner struct {
	log xlog.Logger
}

// New returns a Runner that logs the command line (quoted for copy-paste,
// via shellquote) at Info before executing it.
func New(log xlog.Logger) Runner {
	return &execRunner{log: log}
}

func (r *execRunner) Run(name string, args ...string) ([]byte, error) {
	display := shellquote.Join(append([]string{name}, args...)...)
	r.log.Info("exec", "cmd", display)

	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return out, nerr.Wrapf(errors.WithStack(err),
			"command failed: %s", display)
	}
	return out, nil
}
