/*
 *     Copyright 2022 The Dragonfly Authors
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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInitHypersearch(t *testing.T) {
	assert := assert.New(t)
	defer func() {
		assert.NoError(InitHypersearch(false, true, "", LogRotateConfig{}))
	}()

	dir := t.TempDir()
	assert.NoError(InitHypersearch(false, false, dir, LogRotateConfig{MaxSize: 1}))
	assert.False(IsDebug())

	Infof("hello %s", "world")
	WithJob(1, 2, 0).Infof("hello %s", "job")
	assert.FileExists(filepath.Join(dir, "hypersearch", CoreLogFileName))
	assert.FileExists(filepath.Join(dir, "hypersearch", JobLogFileName))

	SetLevel(zapcore.DebugLevel)
	assert.True(IsDebug())
	assert.True(WithPair(1, 2).IsDebug())
}

func TestLogRotateConfig_WithDefaults(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(LogRotateConfig{
		MaxSize:    defaultRotateMaxSize,
		MaxAge:     defaultRotateMaxAge,
		MaxBackups: defaultRotateMaxBackups,
	}, LogRotateConfig{}.withDefaults())
	assert.Equal(LogRotateConfig{MaxSize: 1, MaxAge: 2, MaxBackups: 3}, LogRotateConfig{MaxSize: 1, MaxAge: 2, MaxBackups: 3}.withDefaults())
}
