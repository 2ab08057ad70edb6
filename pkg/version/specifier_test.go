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

package version

import "testing"

func TestSpecifierEmptyIsAny(t *testing.T) {
	for _, s := range []string{"", "  ", "any", "ANY"} {
		set, err := ParseSpecifier(s)
		if err != nil {
			t.Fatalf("ParseSpecifier(%q) failed: %v", s, err)
		}
		if !set.IsAny() {
			t.Errorf("ParseSpecifier(%q).IsAny() = false", s)
		}
		if !Contains(set, mustParse(t, "0.0.1")) {
			t.Errorf("any specifier must contain everything")
		}
	}
}

func TestSpecifierRange(t *testing.T) {
	set, err := ParseSpecifier(">=2.0,<3.0")
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"1.9.0": false,
		"2.0.0": true,
		"2.5.3": true,
		"3.0.0": false,
		"3.0.1": false,
	}
	for s, want := range cases {
		if got := Contains(set, mustParse(t, s)); got != want {
			t.Errorf("Contains(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestSpecifierCompatibleRelease(t *testing.T) {
	set, err := ParseSpecifier("~=2.2")
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"2.1.9": false,
		"2.2.0": true,
		"2.9.9": true,
		"3.0.0": false,
	}
	for s, want := range cases {
		if got := Contains(set, mustParse(t, s)); got != want {
			t.Errorf("~=2.2 Contains(%s) = %v, want %v", s, got, want)
		}
	}

	set3, err := ParseSpecifier("~=2.2.3")
	if err != nil {
		t.Fatal(err)
	}
	cases3 := map[string]bool{
		"2.2.2": false,
		"2.2.3": true,
		"2.2.9": true,
		"2.3.0": false,
	}
	for s, want := range cases3 {
		if got := Contains(set3, mustParse(t, s)); got != want {
			t.Errorf("~=2.2.3 Contains(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestSpecifierWildcard(t *testing.T) {
	set, err := ParseSpecifier("==1.2.*")
	if err != nil {
		t.Fatal(err)
	}
	if !Contains(set, mustParse(t, "1.2.7")) {
		t.Errorf("expected 1.2.7 to match ==1.2.*")
	}
	if Contains(set, mustParse(t, "1.3.0")) {
		t.Errorf("expected 1.3.0 to NOT match ==1.2.*")
	}
}

func TestSpecifierInvalidOperator(t *testing.T) {
	if _, err := ParseSpecifier("~1.0"); err == nil {
		t.Errorf("expected parse error for unrecognized operator")
	}
}
