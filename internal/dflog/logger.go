/*
 *     Copyright 2020 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
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
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
)

var (
	CoreLogger *zap.SugaredLogger
	JobLogger  *zap.SugaredLogger

	coreLogLevelEnabler zapcore.LevelEnabler
	jobLogLevelEnabler  zapcore.LevelEnabler

	levels []zap.AtomicLevel
)

func init() {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	log, err := config.Build(zap.AddCaller(), zap.AddStacktrace(zap.WarnLevel), zap.AddCallerSkip(1))
	if err == nil {
		sugar := log.Sugar()
		SetCoreLogger(sugar)
		SetJobLogger(sugar)
	}
	levels = append(levels, config.Level)
}

// SetLevel updates all log level
func SetLevel(level zapcore.Level) {
	Infof("change log level to %s", level.String())
	for _, l := range levels {
		l.SetLevel(level)
	}
}

func SetCoreLogger(log *zap.SugaredLogger) {
	CoreLogger = log
	coreLogLevelEnabler = log.Desugar().Core()
}

func SetJobLogger(log *zap.SugaredLogger) {
	JobLogger = log
	jobLogLevelEnabler = log.Desugar().Core()
}

type SugaredLoggerOnWith struct {
	withArgs []any
	job      bool
}

func With(args ...any) *SugaredLoggerOnWith {
	return &SugaredLoggerOnWith{
		withArgs: args,
	}
}

func WithSearch(searchID, mode string) *SugaredLoggerOnWith {
	return &SugaredLoggerOnWith{
		withArgs: []any{"searchID", searchID, "mode", mode},
	}
}

func WithRound(searchID string, iteration int) *SugaredLoggerOnWith {
	return &SugaredLoggerOnWith{
		withArgs: []any{"searchID", searchID, "iteration", iteration},
	}
}

// WithPair logs to the job logger.
func WithPair(cost, gamma float64) *SugaredLoggerOnWith {
	return &SugaredLoggerOnWith{
		withArgs: []any{"cost", cost, "gamma", gamma},
		job:      true,
	}
}

// WithJob logs to the job logger.
func WithJob(cost, gamma float64, fold int) *SugaredLoggerOnWith {
	return &SugaredLoggerOnWith{
		withArgs: []any{"cost", cost, "gamma", gamma, "fold", fold},
		job:      true,
	}
}

func (log *SugaredLoggerOnWith) With(args ...any) *SugaredLoggerOnWith {
	args = append(args, log.withArgs...)
	return &SugaredLoggerOnWith{
		withArgs: args,
		job:      log.job,
	}
}

func (log *SugaredLoggerOnWith) sink() (*zap.SugaredLogger, zapcore.LevelEnabler) {
	if log.job {
		return JobLogger, jobLogLevelEnabler
	}

	return CoreLogger, coreLogLevelEnabler
}

func (log *SugaredLoggerOnWith) Infof(template string, args ...any) {
	l, enabler := log.sink()
	if !enabler.Enabled(zap.InfoLevel) {
		return
	}
	l.Infow(fmt.Sprintf(template, args...), log.withArgs...)
}

func (log *SugaredLoggerOnWith) Warnf(template string, args ...any) {
	l, enabler := log.sink()
	if !enabler.Enabled(zap.WarnLevel) {
		return
	}
	l.Warnw(fmt.Sprintf(template, args...), log.withArgs...)
}

func (log *SugaredLoggerOnWith) Errorf(template string, args ...any) {
	l, enabler := log.sink()
	if !enabler.Enabled(zap.ErrorLevel) {
		return
	}
	l.Errorw(fmt.Sprintf(template, args...), log.withArgs...)
}

func (log *SugaredLoggerOnWith) Debugf(template string, args ...any) {
	l, enabler := log.sink()
	if !enabler.Enabled(zap.DebugLevel) {
		return
	}
	l.Debugw(fmt.Sprintf(template, args...), log.withArgs...)
}

func (log *SugaredLoggerOnWith) IsDebug() bool {
	_, enabler := log.sink()
	return enabler.Enabled(zap.DebugLevel)
}

func Infof(template string, args ...any) {
	CoreLogger.Infof(template, args...)
}

func Info(args ...any) {
	CoreLogger.Info(args...)
}

func Warnf(template string, args ...any) {
	CoreLogger.Warnf(template, args...)
}

func Warn(args ...any) {
	CoreLogger.Warn(args...)
}

func Errorf(template string, args ...any) {
	CoreLogger.Errorf(template, args...)
}

func Error(args ...any) {
	CoreLogger.Error(args...)
}

func Debugf(template string, args ...any) {
	CoreLogger.Debugf(template, args...)
}

func IsDebug() bool {
	return coreLogLevelEnabler.Enabled(zap.DebugLevel)
}

func Fatalf(template string, args ...any) {
	CoreLogger.Fatalf(template, args...)
}

// Redirect stdout and stderr to file for debugging.
func RedirectStdoutAndStderr(console bool, logDir string) {
	// When console log is enabled, skip redirect.
	if console {
		return
	}

	// Redirect stdout to stdout.log file.
	stdoutPath := filepath.Join(logDir, "stdout.log")
	if stdout, err := os.OpenFile(stdoutPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND|os.O_SYNC, 0644); err != nil {
		Warnf("open %s error: %s", stdoutPath, err)
	} else {
		err := unix.Dup2(int(stdout.Fd()), int(os.Stdout.Fd()))
		if err != nil {
			Warnf("redirect stdout error: %s", err)
		} else {
			fmt.Fprintf(os.Stdout, "stdout redirect at %v\n", time.Now())
		}
	}

	// Redirect stderr to stderr.log file.
	stderrPath := filepath.Join(logDir, "stderr.log")
	if stderr, err := os.OpenFile(stderrPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND|os.O_SYNC, 0644); err != nil {
		Warnf("open %s error: %s", stderrPath, err)
	} else {
		if err := unix.Dup2(int(stderr.Fd()), int(os.Stderr.Fd())); err != nil {
			Warnf("redirect stderr error: %s", err)
		} else {
			fmt.Fprintf(os.Stderr, "stderr redirect at %v\n", time.Now())
		}
	}
}
