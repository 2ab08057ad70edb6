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

// Package cli builds the pipup command tree. The command-construction
// style (one *cobra.Command per subcommand, a persistent flag set on the
// root, a shared Usage-on-error helper) is adapted from the teacher's
// newt.go/parseCmds, generalized from newt's many hardware subcommands
// down to this tool's run/show-config/doctor set.
package cli

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runtimeco/pipup/internal/config"
	"github.com/runtimeco/pipup/internal/nerr"
	"github.com/runtimeco/pipup/internal/pexec"
	"github.com/runtimeco/pipup/internal/xlog"
	"github.com/runtimeco/pipup/pkg/environment"
	"github.com/runtimeco/pipup/pkg/engine"
	"github.com/runtimeco/pipup/pkg/installer"
	"github.com/runtimeco/pipup/pkg/manifest"
	"github.com/runtimeco/pipup/pkg/pypi"
	"github.com/runtimeco/pipup/pkg/reflector"
	"github.com/runtimeco/pipup/pkg/resolver"
	"github.com/runtimeco/pipup/pkg/trail"
	"github.com/runtimeco/pipup/pkg/version"
)

var (
	configPath   string
	logLevelName string
	logFilePath  string
	skipMaxVerCk bool
	handoffPath  string
)

const defaultHandoffPath = ".pipup-history.yml"

// Usage prints a startup error and exits 1, matching ConfigInvalid/
// InputInvalid's "fatal at startup" handling in spec.md §7. Named after
// the teacher's NewtUsage, which does the same thing for *cli.NewtError.
func Usage(cmd *cobra.Command, err error) {
	if err != nil {
		if pe, ok := err.(*nerr.PipupError); ok {
			fmt.Fprintln(os.Stderr, "Error:", pe.Text)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	if cmd != nil {
		cmd.Usage()
	}
	os.Exit(1)
}

// NewRootCommand builds the full pipup command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipup",
		Short: "pipup upgrades a set of package pins and repairs the dependency graph around them",
		Long: `pipup installs a set of target package pins, iteratively detects and repairs
forward- and reverse-dependency conflicts the upgrade introduces, and reflects
the resulting pins back into requirement and task manifests.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Usage()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the pipup config file")
	root.PersistentFlags().StringVarP(&logLevelName, "loglevel", "l", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFilePath, "logfile", "", "Optional path to also write logs to")
	root.PersistentFlags().StringVar(&handoffPath, "handoff", defaultHandoffPath, "Path to write the upgrade-history handoff file")

	root.AddCommand(newRunCommand())
	root.AddCommand(newShowConfigCommand())
	root.AddCommand(newDoctorCommand())

	return root
}

func buildLogger() xlog.Logger {
	level, err := log.ParseLevel(logLevelName)
	if err != nil {
		level = log.InfoLevel
	}
	l, err := xlog.New(level, logFilePath)
	if err != nil {
		return xlog.Nop{}
	}
	return l
}

func newRunCommand() *cobra.Command {
	var skipCheck bool
	cmd := &cobra.Command{
		Use:   "run '<pin>[ <pin>...]'",
		Short: "Install target pins and repair the dependency graph around them",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			skipMaxVerCk = skipCheck
			if err := runPipeline(args); err != nil {
				Usage(cmd, err)
			}
		},
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-max-version-check", false, "Do not bump input pins to the maximum pin found across configured manifests")
	return cmd
}

func newShowConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Print the resolved configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(configPath)
			if err != nil {
				Usage(cmd, err)
			}
			fmt.Printf("requirement_files: %v\n", cfg.RequirementFiles)
			fmt.Printf("yml_files: %v\n", cfg.YmlFiles)
			fmt.Printf("max_iterations: %d\n", cfg.MaxIterations)
			fmt.Printf("pin_compiler: %s\n", cfg.PinCompiler)
		},
	}
}

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report on the active Python environment",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

// pin is a parsed "NAME==VERSION" CLI argument.
type pin struct {
	name string
	ver  version.Version
}

func parsePins(args []string) ([]pin, error) {
	var pins []pin
	for _, raw := range args {
		for _, tok := range strings.Fields(raw) {
			idx := strings.Index(tok, "==")
			if idx <= 0 {
				return nil, nerr.Newf("invalid pin %q: expected NAME==VERSION", tok)
			}
			name := tok[:idx]
			v, err := version.Parse(tok[idx+2:])
			if err != nil {
				return nil, nerr.Wrapf(err, "invalid pin %q", tok)
			}
			pins = append(pins, pin{name: name, ver: v})
		}
	}
	if len(pins) == 0 {
		return nil, nerr.New("no target pins supplied")
	}
	return pins, nil
}

func runPipeline(args []string) error {
	logger := buildLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pins, err := parsePins(args)
	if err != nil {
		return err
	}

	run := pexec.New(logger)
	probe := environment.New(run, logger)
	install := installer.New(run, logger)
	idx := pypi.New(logger)
	mstore := manifest.New(cfg.RequirementFiles)

	if !skipMaxVerCk {
		for i, p := range pins {
			if maxV, _, ok := mstore.MaxPinAcross(p.name); ok && version.Less(p.ver, maxV) {
				logger.Info("cli: bumping input pin to manifest maximum", "package", p.name, "requested", p.ver.String(), "manifest_max", maxV.String())
				pins[i].ver = maxV
			}
		}
	}

	var targets []string
	var reflectTargets []reflector.Target
	for _, p := range pins {
		install.Install(p.name, p.ver)
		targets = append(targets, p.name)
		reflectTargets = append(reflectTargets, reflector.Target{Name: p.name, Version: p.ver})
	}

	e := &engine.Engine{
		Probe:         probe,
		Installer:     install,
		Forward:       &resolver.Forward{Probe: probe, Index: idx, Manifest: mstore, Log: logger},
		Reverse:       &resolver.Reverse{Probe: probe, Log: logger},
		Trail:         trail.New(idx),
		Log:           logger,
		MaxIterations: cfg.MaxIterations,
	}
	history := e.Run(targets)

	if err := writeHandoff(handoffPath, history); err != nil {
		logger.Warn("cli: could not write handoff file", "path", handoffPath, "err", err.Error())
	}

	refl := reflector.New(mstore, cfg.YmlFiles, cfg.PinCompiler, run, logger)
	reports := refl.Reflect(history, reflectTargets)

	printSummary(history, reports)
	return nil
}

func printSummary(history map[string]*engine.UpgradeRecord, reports []reflector.Report) {
	fmt.Println("Upgrade summary:")
	for name, rec := range history {
		prev := rec.PreviousLabel
		if prev == "" {
			if rec.HasPrevious {
				prev = rec.PreviousVersion.String()
			} else {
				prev = "not installed"
			}
		}
		upgraded := rec.UpgradedLabel
		if upgraded == "" {
			if rec.HasUpgraded {
				upgraded = rec.UpgradedVersion.String()
			} else {
				upgraded = "install failed"
			}
		}
		fmt.Printf("  %s: %s -> %s\n", name, prev, upgraded)
	}

	fmt.Println("Manifest updates:")
	for _, r := range reports {
		for _, m := range r.Manifests {
			status := "unchanged"
			if m.Err != nil {
				status = "error: " + m.Err.Error()
			} else if m.Updated {
				status = "updated"
			}
			fmt.Printf("  %s %s: %s\n", r.Name, m.Path, status)
		}
		for _, t := range r.Tasks {
			fmt.Printf("  %s %s: %s\n", r.Name, t.Path, t.Outcome.String())
		}
	}
}
