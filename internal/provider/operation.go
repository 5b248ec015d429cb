// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package provider holds the pieces shared by the built-in scripting providers:
// operation ids, completion reporting and writing scripts to disk.
package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/scripting"

	"github.com/google/uuid"
)

// DSNSource looks up the connection string for a connection URI.
type DSNSource interface {
	DSN(connectionURI string) (string, bool)
}

// Generator produces the script text for one operation.
type Generator func(ctx context.Context) (string, error)

type outcome struct {
	script string
	err    error
}

// Run executes gen as an asynchronous scripting operation with a fresh operation id.
//
// The completion (success, failure or cancellation) is reported to sink under
// handle before Run returns the generator's outcome. When ctx ends first, Run
// returns ctx.Err() and the completion is reported once gen gives up.
func Run(ctx context.Context, handle int, sink scripting.CompletionSink, params scripting.ParamDetails, gen Generator) (*scripting.Result, error) {
	opID := uuid.NewString()
	done := make(chan outcome, 1)

	go func() {
		script, err := gen(ctx)
		if err == nil && params.FilePath != "" {
			// A caller that gave up must not find the file written afterwards.
			if err = ctx.Err(); err == nil {
				err = WriteScript(params.FilePath, script)
			}
		}
		if sink != nil {
			sink.OnScriptingComplete(handle, Completion(opID, err))
		}
		done <- outcome{script: script, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return &scripting.Result{OperationID: opID}, out.err
		}
		return &scripting.Result{OperationID: opID, Script: out.script}, nil
	case <-ctx.Done():
		return &scripting.Result{OperationID: opID}, ctx.Err()
	}
}

// Completion builds the completion notification for an operation that ended with err.
func Completion(opID string, err error) *scripting.CompleteResult {
	if err == nil {
		return &scripting.CompleteResult{OperationID: opID, Success: true}
	}
	return &scripting.CompleteResult{
		OperationID:  opID,
		HasError:     true,
		ErrorMessage: err.Error(),
		ErrorDetails: string(apperr.KindOf(err)),
		Canceled:     errors.Is(err, context.Canceled),
	}
}

// WriteScript writes script to path, creating parent directories.
func WriteScript(path, script string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(apperr.WriteFailed, "create "+dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return apperr.Wrap(apperr.WriteFailed, "write "+path, err)
	}
	return nil
}

type tee []scripting.CompletionSink

func (t tee) OnScriptingComplete(handle int, res *scripting.CompleteResult) {
	for _, s := range t {
		s.OnScriptingComplete(handle, res)
	}
}

// Tee returns a sink that forwards every completion to each of sinks in order.
func Tee(sinks ...scripting.CompletionSink) scripting.CompletionSink {
	return tee(sinks)
}
