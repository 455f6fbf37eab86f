// Command libsteelpan builds the engine as a C shared library:
//
//	go build -buildmode=c-shared -o libsteelpan.so ./cmd/libsteelpan
//
// Engines are referred to by handles. Every call returns one of the result
// codes below.
package main

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/cmd"
	"github.com/panyard/steelpan/engine"
)

const (
	resultOK                = 0
	resultInvalidHandle     = -1
	resultDeviceUnavailable = -2
	resultNotRunning        = -3
	resultQueueFull         = -4
	resultError             = -5
)

var errInvalidHandle = errors.New("invalid engine handle")

var engines = struct {
	sync.Mutex
	next uintptr
	m    map[uintptr]*engine.Engine
}{m: map[uintptr]*engine.Engine{}}

func newEngine(configYAML, patchYAML []byte) (uintptr, error) {
	cfg := engine.DefaultConfig()
	if configYAML != nil {
		var err error
		if cfg, err = engine.LoadConfig(bytes.NewReader(configYAML)); err != nil {
			return 0, err
		}
	}
	patch := steelpan.DefaultPatch()
	if patchYAML != nil {
		var err error
		if patch, err = steelpan.ReadPatch(bytes.NewReader(patchYAML)); err != nil {
			return 0, err
		}
	}
	open, err := cmd.Opener(cfg.Output, slog.Default())
	if err != nil {
		return 0, err
	}
	e, err := engine.New(cfg, patch, open)
	if err != nil {
		return 0, err
	}
	engines.Lock()
	defer engines.Unlock()
	engines.next++
	engines.m[engines.next] = e
	return engines.next, nil
}

func lookup(h uintptr) (*engine.Engine, error) {
	engines.Lock()
	defer engines.Unlock()
	e, ok := engines.m[h]
	if !ok {
		return nil, errInvalidHandle
	}
	return e, nil
}

// free destroys the engine and forgets the handle.
func free(h uintptr) error {
	engines.Lock()
	e, ok := engines.m[h]
	delete(engines.m, h)
	engines.Unlock()
	if !ok {
		return errInvalidHandle
	}
	return e.Destroy()
}

func call(h uintptr, f func(e *engine.Engine) error) int {
	e, err := lookup(h)
	if err != nil {
		return result(err)
	}
	return result(f(e))
}

func result(err error) int {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, errInvalidHandle):
		return resultInvalidHandle
	case errors.Is(err, steelpan.ErrDeviceUnavailable):
		return resultDeviceUnavailable
	case errors.Is(err, steelpan.ErrNotRunning):
		return resultNotRunning
	case errors.Is(err, steelpan.ErrQueueFull):
		return resultQueueFull
	default:
		return resultError
	}
}

func main() {}
