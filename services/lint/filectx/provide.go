// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filectx

import (
	"reflect"
)

// Provide returns the File's value of type T, calling build the first time
// T is requested.
//
// Description:
//
//	Values are keyed by type and live until Close, so every rule linting
//	the same pass gets the same instance and build runs at most once per
//	pass. This is how rules share derived data such as a scope table or
//	settings decoded from Environment. If build panics nothing is stored
//	and the next request builds again.
//
// Inputs:
//
//	f - The file. Must not be closed.
//	build - Computes the value from the file.
//
// Outputs:
//
//	T - The cached or newly built value.
//
// Thread Safety:
//
//	Not safe for concurrent use, like the File itself.
func Provide[T any](f *File, build func(*File) T) T {
	key := reflect.TypeFor[T]()
	if v, ok := f.values[key]; ok {
		return v.(T)
	}
	v := build(f)
	if f.values == nil {
		f.values = make(map[reflect.Type]any)
	}
	f.values[key] = v
	return v
}

// Provided reports whether a value of type T has been built for f.
func Provided[T any](f *File) bool {
	_, ok := f.values[reflect.TypeFor[T]()]
	return ok
}
