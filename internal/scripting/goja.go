// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"context"
	"errors"

	"github.com/dop251/goja"

	"github.com/aplane-algo/apvault/internal/engine"
	"github.com/aplane-algo/apvault/internal/jsapi"
)

// GojaRunner runs scripts in a goja VM with the vault bindings installed.
type GojaRunner struct {
	vm   *goja.Runtime
	api  *jsapi.API
	sink func(string)
}

// NewGojaRunner binds a fresh VM to eng. Struct results are exposed to
// scripts under their json field names.
func NewGojaRunner(eng *engine.Engine) *GojaRunner {
	r := &GojaRunner{sink: func(string) {}}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	api := jsapi.NewAPI(eng, false, func(msg string) { r.sink(msg) })
	if err := api.RegisterAll(vm); err != nil {
		panic("failed to register vault bindings: " + err.Error())
	}

	r.vm = vm
	r.api = api
	return r
}

func (r *GojaRunner) Run(code string) (Result, error) {
	v, err := r.vm.RunString(code)
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			return Result{}, &ScriptError{Message: ex.String(), Err: thrownGoError(ex)}
		}
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			r.vm.ClearInterrupt()
		}
		return Result{}, err
	}

	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Result{IsEmpty: true}, nil
	}
	return Result{Value: v.Export()}, nil
}

// thrownGoError recovers the Go error carried by a GoError exception, or
// nil for errors created in JavaScript.
func thrownGoError(ex *goja.Exception) error {
	obj, ok := ex.Value().(*goja.Object)
	if !ok {
		return nil
	}
	v := obj.Get("value")
	if v == nil {
		return nil
	}
	err, _ := v.Export().(error)
	return err
}

func (r *GojaRunner) SetOutput(fn func(string)) {
	if fn == nil {
		fn = func(string) {}
	}
	r.sink = fn
}

// SetContext sets the context passed to engine calls made by bindings.
func (r *GojaRunner) SetContext(ctx context.Context) {
	r.api.SetContext(ctx)
}

func (r *GojaRunner) Interrupt() {
	r.vm.Interrupt("script interrupted")
}

var _ Runner = (*GojaRunner)(nil)
