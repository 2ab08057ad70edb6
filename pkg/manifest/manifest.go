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

// Package manifest reads and rewrites plain pinned-requirement files:
// one `NAME==VERSION` pin per line, blank lines and `#` comments preserved
// verbatim. This is deliberately not a lockfile format and is not parsed
// as anything richer than lines, mirroring util.ReadLines's line-oriented
// approach to text configuration in the teacher.
package manifest

import (
	"bufio"
	"os"
	"strings"

	"github.com/runtimeco/pipup/internal/nerr"
	"github.com/runtimeco/pipup/pkg/pkgname"
	"github.com/runtimeco/pipup/pkg/version"
)

// Store operates over a configured, ordered list of requirement manifest
// paths.
type Store struct {
	Paths []string
}

// New builds a Store over the given ordered manifest paths.
func New(paths []string) *Store {
	return &Store{Paths: paths}
}

type pinLine struct {
	raw     string
	name    string // original casing
	version string
}

// parsePinLine recognizes a bare "NAME==VERSION[ trailing]" line. Anything
// else (blank, #-comment, or missing "==") is not a pin.
func parsePinLine(line string) (pinLine, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return pinLine{}, false
	}
	idx := strings.Index(trimmed, "==")
	if idx <= 0 {
		return pinLine{}, false
	}
	name := strings.TrimSpace(trimmed[:idx])
	rest := trimmed[idx+2:]
	// Version text runs until whitespace or a trailing comment.
	end := len(rest)
	for i, c := range rest {
		if c == ' ' || c == '\t' || c == '#' {
			end = i
			break
		}
	}
	verStr := strings.TrimSpace(rest[:end])
	if verStr == "" {
		return pinLine{}, false
	}
	return pinLine{raw: line, name: name, version: verStr}, true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nerr.Wrapf(err, "could not open manifest %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nerr.Wrapf(err, "could not read manifest %s", path)
	}
	return lines, nil
}

// GetPin returns the pinned version of name in the given manifest file,
// case-insensitive, exact `==` pins only.
func (s *Store) GetPin(path, name string) (version.Version, bool, error) {
	lines, err := readLines(path)
	if err != nil {
		return version.Version{}, false, err
	}
	for _, line := range lines {
		pin, ok := parsePinLine(line)
		if !ok || !pkgname.Equal(pin.name, name) {
			continue
		}
		v, err := version.Parse(pin.version)
		if err != nil {
			continue
		}
		return v, true, nil
	}
	return version.Version{}, false, nil
}

// MaxPinAcross returns the numerically largest pin of name across every
// configured manifest, and the path of the first manifest it appears in
// (ties broken by manifest order).
func (s *Store) MaxPinAcross(name string) (version.Version, string, bool) {
	var best version.Version
	var bestPath string
	found := false
	for _, path := range s.Paths {
		v, ok, err := s.GetPin(path, name)
		if err != nil || !ok {
			continue
		}
		if !found || version.Less(best, v) {
			best = v
			bestPath = path
			found = true
		}
	}
	return best, bestPath, found
}

// SetPin rewrites every matching pin line in path (normally there is one) to
// name==newVersion, preserving the name's original casing, trailing
// comments/whitespace, and every non-matching line. It returns whether a
// matching line was found.
func (s *Store) SetPin(path, name string, newVersion version.Version) (bool, error) {
	lines, err := readLines(path)
	if err != nil {
		return false, err
	}
	if lines == nil {
		return false, nil
	}

	updated := false
	for i, line := range lines {
		pin, ok := parsePinLine(line)
		if !ok || !pkgname.Equal(pin.name, name) {
			continue
		}
		idx := strings.Index(line, "==")
		prefix := line[:idx+2]
		rest := line[idx+2:]
		end := len(rest)
		for j, c := range rest {
			if c == ' ' || c == '\t' || c == '#' {
				end = j
				break
			}
		}
		lines[i] = prefix + newVersion.String() + rest[end:]
		updated = true
	}

	if !updated {
		return false, nil
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return false, nerr.Wrapf(err, "could not write manifest %s", path)
	}
	return true, nil
}
