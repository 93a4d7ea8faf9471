//go:build darwin

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

package dfpath

import (
	"os"
	"path/filepath"
)

var (
	DefaultWorkHome     = filepath.Join(homeDir(), ".hypersearch")
	DefaultWorkHomeMode = os.FileMode(0700)
	DefaultConfigDir    = filepath.Join(DefaultWorkHome, "config")
	DefaultLogDir       = filepath.Join(DefaultWorkHome, "logs")
	DefaultDataDir      = filepath.Join(DefaultWorkHome, "data")
	DefaultDataDirMode  = os.FileMode(0700)
)

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}

	return dir
}
