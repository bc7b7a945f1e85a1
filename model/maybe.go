// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package model

import "encoding/json"

// Maybe is a value that is either present or absent.
type Maybe[T any] struct {
	v  T
	ok bool
}

func Some[T any](v T) Maybe[T] {
	return Maybe[T]{v: v, ok: true}
}

func None[T any]() Maybe[T] {
	return Maybe[T]{}
}

func (m Maybe[T]) Get() (T, bool) {
	return m.v, m.ok
}

func (m Maybe[T]) Present() bool {
	return m.ok
}

// OrElse returns the value, or def when absent.
func (m Maybe[T]) OrElse(def T) T {
	if m.ok {
		return m.v
	}
	return def
}

// MarshalJSON encodes an absent value as null.
func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	if !m.ok {
		return []byte("null"), nil
	}
	return json.Marshal(m.v)
}
