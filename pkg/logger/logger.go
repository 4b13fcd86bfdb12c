/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	colorBrown = "\033[31;1m"
	colorReset = "\033[0m"
)

type sink struct {
	log zerolog.Logger
	out io.Writer
}

var current atomic.Pointer[sink]

func init() {
	SetOutput(os.Stdout)
}

func newSink(w io.Writer, level zerolog.Level) *sink {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	return &sink{
		log: zerolog.New(cw).Level(level).With().Timestamp().Logger(),
		out: w,
	}
}

// SetOutput redirects all log output to w, keeping the current level.
func SetOutput(w io.Writer) {
	level := zerolog.InfoLevel
	if s := current.Load(); s != nil {
		level = s.log.GetLevel()
	}
	current.Store(newSink(w, level))
}

// SetLevel sets the minimum level by name ("debug", "info", "warn", ...).
func SetLevel(name string) error {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", name, err)
	}
	s := current.Load()
	current.Store(newSink(s.out, level))
	return nil
}

// Logger exposes the underlying zerolog logger for structured fields.
func Logger() zerolog.Logger {
	return current.Load().log
}

func Debugf(format string, args ...interface{}) {
	current.Load().log.Debug().Msgf(format, args...)
}

func Infof(format string, args ...interface{}) {
	current.Load().log.Info().Msgf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	current.Load().log.Warn().Msgf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	current.Load().log.Error().Msgf(format, args...)
}

// Tokenf writes raw model output without a log prefix or trailing newline.
func Tokenf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(current.Load().out, "%s%s%s", colorBrown, message, colorReset)
}

func Fatalf(format string, args ...interface{}) {
	current.Load().log.Fatal().Msgf(format, args...)
}
