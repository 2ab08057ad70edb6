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

// Package xlog wraps logrus behind the three-level Logger interface the
// engine and its collaborators depend on (C10-C11 never import logrus
// directly).
package xlog

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Logger is the interface the engine (C10), resolvers (C7/C8), and
// reflector (C11) log through.  kv is an optional sequence of alternating
// key/value pairs, e.g. Info("installed", "name", "flask", "version", "3.0.3").
type Logger interface {
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

type logrusLogger struct {
	entry *log.Entry
}

// New builds a Logger that writes to w (os.Stderr in production, and
// additionally to logFilePath if non-empty, matching the teacher's
// two-stage util.Init/initLog).
func New(level log.Level, logFilePath string) (Logger, error) {
	base := log.New()
	base.SetLevel(level)
	base.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000",
	})

	var w io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.Create(logFilePath)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	base.SetOutput(w)

	return &logrusLogger{entry: log.NewEntry(base)}, nil
}

func withFields(kv []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
	return f
}

func (l *logrusLogger) Info(msg string, kv ...interface{}) {
	l.entry.WithFields(withFields(kv)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, kv ...interface{}) {
	l.entry.WithFields(withFields(kv)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, kv ...interface{}) {
	l.entry.WithFields(withFields(kv)).Error(msg)
}

// Nop is a Logger that discards everything; used by tests that only care
// about return values, not log output.
type Nop struct{}

func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}
