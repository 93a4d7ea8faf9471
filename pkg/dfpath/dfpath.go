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
	"io/fs"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Dfpath is the interface used for init project path.
type Dfpath interface {
	WorkHome() string
	LogDir() string
	DataDir() string
	DataDirMode() fs.FileMode
}

// Dfpath provides init project path function.
type dfpath struct {
	workHome     string
	workHomeMode fs.FileMode
	logDir       string
	dataDir      string
	dataDirMode  fs.FileMode
}

// Cache of the dfpath.
var cache struct {
	sync.Once
	d   *dfpath
	err *multierror.Error
}

// Option is a functional option for configuring the dfpath.
type Option func(d *dfpath)

// WithWorkHome set the workhome directory.
func WithWorkHome(dir string) Option {
	return func(d *dfpath) {
		d.workHome = dir
	}
}

// WithLogDir set the log directory.
func WithLogDir(dir string) Option {
	return func(d *dfpath) {
		d.logDir = dir
	}
}

// WithDataDir set the directory of reports and models.
func WithDataDir(dir string) Option {
	return func(d *dfpath) {
		d.dataDir = dir
	}
}

// New returns a new dfpath interface. Directories are created once per
// process, later calls return the first result.
func New(options ...Option) (Dfpath, error) {
	cache.Do(func() {
		d := &dfpath{
			workHome:     DefaultWorkHome,
			workHomeMode: DefaultWorkHomeMode,
			logDir:       DefaultLogDir,
			dataDir:      DefaultDataDir,
			dataDirMode:  DefaultDataDirMode,
		}

		for _, opt := range options {
			opt(d)
		}

		// Create workhome directory.
		if err := os.MkdirAll(d.workHome, d.workHomeMode); err != nil {
			cache.err = multierror.Append(cache.err, err)
		}

		// Create log directory.
		if err := os.MkdirAll(d.logDir, fs.FileMode(0700)); err != nil {
			cache.err = multierror.Append(cache.err, err)
		}

		// Create data directory.
		if err := os.MkdirAll(d.dataDir, d.dataDirMode); err != nil {
			cache.err = multierror.Append(cache.err, err)
		}

		cache.d = d
	})

	if cache.err.ErrorOrNil() != nil {
		return nil, cache.err
	}

	d := *cache.d
	return &d, nil
}

func (d *dfpath) WorkHome() string {
	return d.workHome
}

func (d *dfpath) LogDir() string {
	return d.logDir
}

func (d *dfpath) DataDir() string {
	return d.dataDir
}

func (d *dfpath) DataDirMode() fs.FileMode {
	return d.dataDirMode
}
