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

// Package config loads pipup's YAML configuration file the way
// newt/project/project.go loads project.yml: a single *viper.Viper read at
// startup, immutable thereafter.
package config

import (
	"os/exec"
	"path/filepath"

	"github.com/kardianos/osext"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/runtimeco/pipup/internal/nerr"
)

const (
	// DefaultPath is used when the CLI's --config flag is not given.
	DefaultPath = "pipup.yml"

	keyRequirementFiles = "requirement_files"
	keyYmlFiles         = "yml_files"
	keyMaxIterations    = "max_iterations"
	keyPinCompiler      = "pin_compiler"
)

// Config is read once at startup; C5/C6/C11 treat it as immutable for the
// lifetime of a run.
type Config struct {
	// RequirementFiles is the ordered list of requirements*.txt-style
	// manifests C5 operates over.  Order is significant: maxPinAcross ties
	// are broken in this order.
	RequirementFiles []string

	// YmlFiles is the ordered list of task-list manifests C6 operates over.
	YmlFiles []string

	// MaxIterations overrides the engine's default bound of 10; zero (the
	// value when the max_iterations key is absent) means "use the default".
	MaxIterations int

	// PinCompiler is the path to a pip-compile-compatible binary used by
	// C11/A5 to regenerate compiled pin files.  Empty disables that step.
	PinCompiler string
}

// Load reads path as YAML and validates that at least one of the two list
// keys is present. A missing file or a file missing both list keys is
// ConfigInvalid, which
// is fatal at startup per spec.md §7.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, nerr.Wrapf(err, "could not read config file %q", path)
	}

	reqFiles := cast.ToStringSlice(v.Get(keyRequirementFiles))
	ymlFiles := cast.ToStringSlice(v.Get(keyYmlFiles))

	if len(reqFiles) == 0 && len(ymlFiles) == 0 {
		return nil, nerr.Newf(
			"config file %q defines neither %q nor %q", path,
			keyRequirementFiles, keyYmlFiles)
	}

	pinCompiler := v.GetString(keyPinCompiler)
	if pinCompiler == "" {
		pinCompiler = locatePinCompiler()
	}

	return &Config{
		RequirementFiles: reqFiles,
		YmlFiles:         ymlFiles,
		MaxIterations:    v.GetInt(keyMaxIterations),
		PinCompiler:      pinCompiler,
	}, nil
}

// locatePinCompiler finds a default pip-compile binary when the config
// doesn't name one explicitly: first on $PATH, then as a sibling of this
// executable (the layout a bundled virtualenv toolchain would use). Either
// miss leaves pin-compile regeneration disabled.
func locatePinCompiler() string {
	if path, err := exec.LookPath("pip-compile"); err == nil {
		return path
	}
	dir, err := osext.ExecutableFolder()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(dir, "pip-compile")
	if _, err := exec.LookPath(candidate); err == nil {
		return candidate
	}
	return ""
}
