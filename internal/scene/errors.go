/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"fmt"
)

// Class groups editing failures by how callers should react to them.
type Class int

const (
	// ClassValidation is an illegal structural operation, e.g. deleting the frame.
	// The operation is a no-op and the error is surfaced as a warning.
	ClassValidation Class = iota + 1
	// ClassState means the command references an object that is no longer in the scene.
	ClassState
	// ClassAsyncResource is a font or image load failure or timeout.
	ClassAsyncResource
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassAsyncResource:
		return "async_resource"
	default:
		return "unknown"
	}
}

// Sentinels matched with errors.Is.
var (
	ErrValidation    = errors.New("invalid scene operation")
	ErrState         = errors.New("object not in scene")
	ErrAsyncResource = errors.New("resource unavailable")
)

// Error is the single error type returned across command boundaries.
type Error struct {
	Class    Class
	Op       string
	ObjectID string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.ObjectID != "" {
		msg += " " + e.ObjectID
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Class)
}

func (e *Error) Unwrap() []error {
	var sentinel error
	switch e.Class {
	case ClassValidation:
		sentinel = ErrValidation
	case ClassState:
		sentinel = ErrState
	case ClassAsyncResource:
		sentinel = ErrAsyncResource
	}
	out := make([]error, 0, 2)
	if sentinel != nil {
		out = append(out, sentinel)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Validationf builds a ClassValidation error.
func Validationf(op, id, format string, args ...any) *Error {
	return &Error{Class: ClassValidation, Op: op, ObjectID: id, Err: fmt.Errorf(format, args...)}
}

// Missing builds the ClassState error for an object id that is gone.
func Missing(op, id string) *Error {
	return &Error{Class: ClassState, Op: op, ObjectID: id}
}

// ResourceErr wraps a load failure as ClassAsyncResource.
func ResourceErr(op, id string, err error) *Error {
	return &Error{Class: ClassAsyncResource, Op: op, ObjectID: id, Err: err}
}

// ClassOf returns the class of err, or 0 when err is not a scene error.
func ClassOf(err error) Class {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	return 0
}
