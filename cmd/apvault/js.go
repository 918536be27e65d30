// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aplane-algo/apvault/internal/keystore"
	"github.com/aplane-algo/apvault/internal/scripting"
)

const defaultScriptTimeout = 2 * time.Minute

// runner returns the shared script runner. Scripts without a stored key can
// still read vault state.
func (a *app) runner() (*scripting.GojaRunner, error) {
	if a.js != nil {
		return a.js, nil
	}
	eng, err := a.engine(true)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		eng, err = a.engine(false)
	}
	if err != nil {
		return nil, err
	}
	r := scripting.NewGojaRunner(eng)
	r.SetOutput(func(s string) { fmt.Println(s) })
	a.js = r
	return r, nil
}

func cmdJS(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("js")
	code := fs.String("e", "", "Evaluate CODE instead of reading a file")
	timeout := fs.Duration("timeout", defaultScriptTimeout, "Abort the script after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src := *code
	switch {
	case src != "" && fs.NArg() == 0:
	case src == "" && fs.NArg() == 1:
		data, err := readScript(fs.Arg(0))
		if err != nil {
			return err
		}
		src = string(data)
	default:
		return errUsage
	}
	return a.evalJS(ctx, src, *timeout)
}

func readScript(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return data, nil
}

func (a *app) evalJS(ctx context.Context, src string, timeout time.Duration) error {
	r, err := a.runner()
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	r.SetContext(ctx)

	res, err := scripting.Execute(ctx, r, src)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("script timed out after %s", timeout)
	}
	if err != nil {
		return err
	}
	if !res.IsEmpty {
		fmt.Printf("%v\n", res.Value)
	}
	return nil
}
