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

// Package nerr defines pipup's single error type.  Every error that crosses
// a component boundary is a *PipupError so the CLI can always print a
// message.  Each error also captures the stack at creation in StackTrace;
// the CLI does not print it.
package nerr

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

type PipupError struct {
	Parent     error
	Text       string
	StackTrace []byte
}

func (pe *PipupError) Error() string {
	return pe.Text
}

// Unwrap lets errors.Is/errors.As see through to the parent, in addition to
// the explicit chain helpers below.
func (pe *PipupError) Unwrap() error {
	return pe.Parent
}

func New(msg string) *PipupError {
	buf := make([]byte, 65536)
	n := runtime.Stack(buf, false)

	return &PipupError{
		Text:       msg,
		StackTrace: buf[:n],
	}
}

func Newf(format string, args ...interface{}) *PipupError {
	return New(fmt.Sprintf(format, args...))
}

// Wrap attaches msg as context in front of err's message and keeps err as
// the parent for StackTrace/Unwrap purposes.  err is wrapped with
// github.com/pkg/errors first so the original call site survives in the
// parent chain even when err is a plain stdlib error.
func Wrap(err error, msg string) *PipupError {
	pe := New(msg + ": " + err.Error())
	pe.Parent = errors.WithStack(err)
	return pe
}

func Wrapf(err error, format string, args ...interface{}) *PipupError {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Root walks the Parent chain and returns the originating error.
func Root(err error) error {
	for {
		pe, ok := err.(*PipupError)
		if !ok || pe == nil || pe.Parent == nil {
			return err
		}
		err = pe.Parent
	}
}
