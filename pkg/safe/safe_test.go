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

package safe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCall(t *testing.T) {
	tests := []struct {
		name   string
		f      func()
		expect func(t *testing.T, err error)
	}{
		{
			name: "call without panic",
			f:    func() {},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "call with panic",
			f:    func() { panic("foo") },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.ErrorIs(err, ErrPanic)
				assert.EqualError(err, "panic: foo")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.expect(t, Call(tc.f))
		})
	}
}

func TestCallE(t *testing.T) {
	tests := []struct {
		name   string
		f      func() error
		expect func(t *testing.T, err error)
	}{
		{
			name: "returns nil",
			f:    func() error { return nil },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "returns error",
			f:    func() error { return errors.New("foo") },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "foo")
				assert.False(errors.Is(err, ErrPanic))
			},
		},
		{
			name: "panics",
			f: func() error {
				var m map[string]int
				m["foo"] = 1
				return nil
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.ErrorIs(err, ErrPanic)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.expect(t, CallE(tc.f))
		})
	}
}
