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

package safe

import (
	"errors"
	"fmt"
	"runtime/debug"

	logger "d7y.io/hypersearch/internal/dflog"
)

// ErrPanic is wrapped by every error recovered from a panic.
var ErrPanic = errors.New("panic")

// Safe call function.
func Call(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Errorf("panic: %s", string(debug.Stack()))
		}
	}()

	f()

	return
}

// CallE calls f and converts a panic into an error wrapping ErrPanic.
func CallE(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Errorf("panic: %s", string(debug.Stack()))
		}
	}()

	return f()
}
