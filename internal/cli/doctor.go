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
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/host"

	"github.com/runtimeco/pipup/internal/pexec"
)

// runDoctor reports on the active Python environment and host. It is
// read-only: no install, no probe mutation, nothing persisted to the
// handoff file, per spec.md §9's non-goal that pipup never bootstraps a
// virtualenv.
func runDoctor() {
	logger := buildLogger()
	run := pexec.New(logger)

	fmt.Println("pipup doctor")
	printPythonVersion(run)
	printVirtualEnv()
	printHostInfo()
}

func printPythonVersion(run pexec.Runner) {
	out, err := run.Run("python3", "-V")
	if err != nil {
		fmt.Println("  python3: not found")
		return
	}
	fmt.Printf("  python3: %s\n", strings.TrimSpace(string(out)))
}

func printVirtualEnv() {
	if v := os.Getenv("VIRTUAL_ENV"); v != "" {
		fmt.Printf("  VIRTUAL_ENV: %s\n", v)
	} else {
		fmt.Println("  VIRTUAL_ENV: (not set)")
	}
}

func printHostInfo() {
	info, err := host.Info()
	if err != nil {
		fmt.Println("  host: unavailable")
		return
	}
	fmt.Printf("  host: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.OS)
}
