// Package gomidi plays notes from MIDI inputs. Handler maps MIDI messages to
// voices; RTMIDIContext (cgo only) feeds it from the MIDI ports of the system.
package gomidi

import (
	"sync/atomic"

	"github.com/panyard/steelpan"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// NotePlayer is what MIDI notes are played on, usually an
	// *engine.Engine.
	NotePlayer interface {
		TriggerVoice(key steelpan.VoiceKey, frequency float32) error
		StopVoice(key steelpan.VoiceKey) error
		StopAll() error
	}

	// Handler turns note on and note off messages into voices. Each channel
	// and key pair is a voice of its own.
	Handler struct {
		Player NotePlayer
		// Channel is the only MIDI channel listened to, 0-15, or -1 for
		// all channels.
		Channel int

		errors atomic.Uint64
	}
)

const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

func NewHandler(player NotePlayer) *Handler {
	return &Handler{Player: player, Channel: -1}
}

// HandleMessage has the signature of the callback of midi.ListenTo.
func (h *Handler) HandleMessage(msg midi.Message, timestampms int32) {
	var channel, key, velocity, controller, value uint8
	var err error
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		if !h.listens(channel) {
			return
		}
		// note on with zero velocity is a note off
		if velocity == 0 {
			err = h.Player.StopVoice(steelpan.MIDIVoiceKey(channel, key))
		} else {
			err = h.Player.TriggerVoice(steelpan.MIDIVoiceKey(channel, key), steelpan.MIDINoteFrequency(key))
		}
	case msg.GetNoteOff(&channel, &key, &velocity):
		if !h.listens(channel) {
			return
		}
		err = h.Player.StopVoice(steelpan.MIDIVoiceKey(channel, key))
	case msg.GetControlChange(&channel, &controller, &value):
		if !h.listens(channel) || (controller != ccAllSoundOff && controller != ccAllNotesOff) {
			return
		}
		err = h.Player.StopAll()
	}
	if err != nil {
		h.errors.Add(1)
	}
}

// Errors returns the number of messages the player could not play, e.g.
// because the engine was not running or its queue was full.
func (h *Handler) Errors() uint64 {
	return h.errors.Load()
}

func (h *Handler) listens(channel uint8) bool {
	return h.Channel < 0 || int(channel) == h.Channel
}
