//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package runner

import "errors"

var (
	ErrStartup               = errors.New("startup failed")
	ErrAlreadyStarted        = errors.New("runner already started")
	ErrNotStarted            = errors.New("runner not started")
	ErrFlowNotFound          = errors.New("flow not found")
	ErrNotGlobalTrigger      = errors.New("node is not a global trigger")
	ErrTriggerRunning        = errors.New("trigger already running")
	ErrNodeNotPublic         = errors.New("no public node with this id")
	ErrArgumentCountMismatch = errors.New("argument count mismatch")
	ErrUnknownArgument       = errors.New("unknown argument")
	ErrTypeMismatch          = errors.New("result type mismatch")
	ErrInvokeFailed          = errors.New("invoke failed")
)
