//go:build cgo

package main

// #include <stdint.h>
// #include <string.h>
import "C"

import (
	"log/slog"
	"unsafe"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/engine"
)

// steelpan_new returns a handle to a new engine, or 0 if the config or the
// patch is invalid. Either YAML document may be NULL to use the defaults.
//
//export steelpan_new
func steelpan_new(configYAML, patchYAML *C.char) C.uintptr_t {
	h, err := newEngine(goBytes(configYAML), goBytes(patchYAML))
	if err != nil {
		slog.Error("could not create steelpan engine", "err", err)
		return 0
	}
	return C.uintptr_t(h)
}

//export steelpan_initialize_audio
func steelpan_initialize_audio(h C.uintptr_t) C.int {
	return C.int(call(uintptr(h), (*engine.Engine).Initialize))
}

//export steelpan_destroy_audio
func steelpan_destroy_audio(h C.uintptr_t) C.int {
	return C.int(call(uintptr(h), (*engine.Engine).Destroy))
}

//export steelpan_play_note
func steelpan_play_note(h C.uintptr_t, frequency C.float) C.int {
	return C.int(call(uintptr(h), func(e *engine.Engine) error {
		return e.PlayNote(float32(frequency))
	}))
}

//export steelpan_play_sound
func steelpan_play_sound(h C.uintptr_t, key C.int32_t, frequency C.float) C.int {
	return C.int(call(uintptr(h), func(e *engine.Engine) error {
		return e.TriggerVoice(steelpan.VoiceKey(key), float32(frequency))
	}))
}

//export steelpan_play_note_name
func steelpan_play_note_name(h C.uintptr_t, key C.int32_t, name *C.char) C.int {
	return C.int(call(uintptr(h), func(e *engine.Engine) error {
		return e.PlayNoteName(C.GoString(name), steelpan.VoiceKey(key))
	}))
}

//export steelpan_stop_sound
func steelpan_stop_sound(h C.uintptr_t, key C.int32_t) C.int {
	return C.int(call(uintptr(h), func(e *engine.Engine) error {
		return e.StopVoice(steelpan.VoiceKey(key))
	}))
}

//export steelpan_stop_all
func steelpan_stop_all(h C.uintptr_t) C.int {
	return C.int(call(uintptr(h), (*engine.Engine).StopAll))
}

// steelpan_free destroys the engine. The handle is invalid afterwards.
//
//export steelpan_free
func steelpan_free(h C.uintptr_t) C.int {
	return C.int(result(free(uintptr(h))))
}

func goBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(s), C.int(C.strlen(s)))
}
