// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Serializer converts inputs to the bytes stored in the corpus and artifacts.
// Deserialize(Serialize(v)) must produce a value equal to v that shares no memory with it.
type Serializer[T any] interface {
	Serialize(value T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

type JSONSerializer[T any] struct{}

func (JSONSerializer[T]) Serialize(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONSerializer[T]) Deserialize(data []byte) (T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to parse input: %w", err)
	}
	return value, nil
}

// BytesSerializer stores []byte inputs as is.
type BytesSerializer struct{}

func (BytesSerializer) Serialize(value []byte) ([]byte, error) {
	return slices.Clone(value), nil
}

func (BytesSerializer) Deserialize(data []byte) ([]byte, error) {
	return slices.Clone(data), nil
}

// StringSerializer stores string inputs as is.
type StringSerializer struct{}

func (StringSerializer) Serialize(value string) ([]byte, error) {
	return []byte(value), nil
}

func (StringSerializer) Deserialize(data []byte) (string, error) {
	return string(data), nil
}
