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

// Package taskmanifest edits pin occurrences inside Ansible-style
// task-list YAML files: entries shaped either as a dash-introduced list
// item ("  - name==version") or a key-introduced single item
// ("  name: name==version"). It edits by line, not by a structured YAML
// round-trip, so comments and formatting survive untouched — the same
// approach the source prototype's set_package_version takes with a pair
// of case-insensitive regexes.
package taskmanifest

import (
	"os"
	"regexp"

	"github.com/runtimeco/pipup/pkg/pkgname"
)

// Outcome is the result of a SetPin call.
type Outcome int

const (
	// NotFound means no occurrence of the package name was found.
	NotFound Outcome = iota
	// Unchanged means the package was found, already at newVersion.
	Unchanged
	// Updated means at least one occurrence was rewritten.
	Updated
	// Error means an I/O error occurred.
	Error
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the full outcome of a SetPin call, including the version
// captured from the first matching line before any rewrite.
type Result struct {
	Outcome    Outcome
	OldVersion string
}

func pinPatterns(name string) (listItem, singleItem *regexp.Regexp) {
	escaped := regexp.QuoteMeta(name)
	listItem = regexp.MustCompile(`(?i)^(\s*-\s+)(` + escaped + `)==([^\s]+)(.*)$`)
	singleItem = regexp.MustCompile(`(?i)^(\s*name:\s+)(` + escaped + `)==([^\s]+)(.*)$`)
	return
}

// SetPin rewrites every LIST_ITEM/SINGLE_ITEM occurrence of name in path to
// newVersion, case-insensitively, preserving the name's original casing as
// written. See Outcome for the possible results.
func SetPin(path, name, newVersion string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Outcome: Error}
	}

	listItem, singleItem := pinPatterns(name)

	contents, endings := splitKeepEnds(string(data))

	updated := false
	found := false
	var oldVersion string

	for i, line := range contents {
		shape := listItem.FindStringSubmatch(line)
		if shape == nil {
			shape = singleItem.FindStringSubmatch(line)
		}
		if shape == nil {
			continue
		}

		prefix, asWritten, ver, suffix := shape[1], shape[2], shape[3], shape[4]
		if !pkgname.Equal(asWritten, name) {
			continue
		}
		found = true
		if oldVersion == "" {
			oldVersion = ver
		}
		if ver != newVersion {
			contents[i] = prefix + asWritten + "==" + newVersion + suffix
			updated = true
		}
	}

	if updated {
		if err := os.WriteFile(path, []byte(joinLines(contents, endings)), 0644); err != nil {
			return Result{Outcome: Error}
		}
		return Result{Outcome: Updated, OldVersion: oldVersion}
	}
	if found {
		return Result{Outcome: Unchanged, OldVersion: oldVersion}
	}
	return Result{Outcome: NotFound}
}

// splitKeepEnds splits s into per-line content (without terminator) and the
// exact terminator that followed each line ("\n", "\r\n", or "" for a final
// unterminated line), so a rewritten line can be rejoined with its original
// line ending untouched.
func splitKeepEnds(s string) (contents []string, endings []string) {
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			end := i
			ending := "\n"
			if end > start && s[end-1] == '\r' {
				end--
				ending = "\r\n"
			}
			contents = append(contents, s[start:end])
			endings = append(endings, ending)
			start = i + 1
		}
	}
	if start < len(s) {
		contents = append(contents, s[start:])
		endings = append(endings, "")
	}
	return contents, endings
}

func joinLines(contents, endings []string) string {
	var buf []byte
	for i, c := range contents {
		buf = append(buf, c...)
		buf = append(buf, endings[i]...)
	}
	return string(buf)
}
