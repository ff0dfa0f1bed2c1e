//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

var (
	typesMu   sync.RWMutex
	typeTable = map[string]reflect.Type{
		"int":            reflect.TypeOf(0),
		"int32":          reflect.TypeOf(int32(0)),
		"int64":          reflect.TypeOf(int64(0)),
		"uint":           reflect.TypeOf(uint(0)),
		"float32":        reflect.TypeOf(float32(0)),
		"float64":        reflect.TypeOf(float64(0)),
		"string":         reflect.TypeOf(""),
		"bool":           reflect.TypeOf(false),
		"duration":       reflect.TypeOf(time.Duration(0)),
		"[]any":          reflect.TypeOf([]any(nil)),
		"[]string":       reflect.TypeOf([]string(nil)),
		"[]int":          reflect.TypeOf([]int(nil)),
		"[]float64":      reflect.TypeOf([]float64(nil)),
		"map[string]any": reflect.TypeOf(map[string]any(nil)),
	}
)

// RegisterType makes a declared parameter type name convertible.
func RegisterType(name string, t reflect.Type) {
	typesMu.Lock()
	typeTable[name] = t
	typesMu.Unlock()
}

func lookupType(name string) (reflect.Type, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := typeTable[name]
	return t, ok
}

// Convert converts v to the declared type name using weak decoding, so
// "5", 5.0 and 5 all become int 5. Unknown type names and "any" leave the
// value unchanged.
func Convert(v any, typeName string) (any, error) {
	if v == nil || typeName == "" || typeName == "any" {
		return v, nil
	}
	t, ok := lookupType(typeName)
	if !ok {
		return v, nil
	}
	if reflect.TypeOf(v) == t {
		return v, nil
	}
	out := reflect.New(t)
	cfg := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out.Interface(),
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("%w: %v to %s: %v", ErrArgumentConversion, v, typeName, err)
	}
	return out.Elem().Interface(), nil
}
