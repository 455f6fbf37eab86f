package gomidi_test

import (
	"testing"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/gomidi"
	"gitlab.com/gomidi/midi/v2"
)

type event struct {
	on   bool
	key  steelpan.VoiceKey
	freq float32
}

type recorder struct {
	events  []event
	stopAll int
}

func (r *recorder) TriggerVoice(key steelpan.VoiceKey, frequency float32) error {
	r.events = append(r.events, event{on: true, key: key, freq: frequency})
	return nil
}

func (r *recorder) StopVoice(key steelpan.VoiceKey) error {
	r.events = append(r.events, event{key: key})
	return nil
}

func (r *recorder) StopAll() error {
	r.stopAll++
	return nil
}

func TestHandlerNotes(t *testing.T) {
	r := &recorder{}
	h := gomidi.NewHandler(r)
	h.HandleMessage(midi.NoteOn(0, 69, 100), 0)
	h.HandleMessage(midi.NoteOn(1, 69, 100), 0)
	h.HandleMessage(midi.NoteOff(0, 69), 0)
	h.HandleMessage(midi.NoteOn(1, 69, 0), 0)
	want := []event{
		{on: true, key: steelpan.MIDIVoiceKey(0, 69), freq: 440},
		{on: true, key: steelpan.MIDIVoiceKey(1, 69), freq: 440},
		{key: steelpan.MIDIVoiceKey(0, 69)},
		{key: steelpan.MIDIVoiceKey(1, 69)},
	}
	if len(r.events) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(r.events), len(want), r.events)
	}
	for i := range want {
		if r.events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, r.events[i], want[i])
		}
	}
}

func TestHandlerChannelFilter(t *testing.T) {
	r := &recorder{}
	h := gomidi.NewHandler(r)
	h.Channel = 2
	h.HandleMessage(midi.NoteOn(0, 60, 100), 0)
	h.HandleMessage(midi.NoteOn(2, 60, 100), 0)
	h.HandleMessage(midi.ControlChange(0, 123, 0), 0)
	if len(r.events) != 1 || r.events[0].key != steelpan.MIDIVoiceKey(2, 60) {
		t.Fatalf("unexpected events %v", r.events)
	}
	if r.stopAll != 0 {
		t.Fatalf("all notes off on another channel was handled")
	}
}

func TestHandlerAllNotesOff(t *testing.T) {
	r := &recorder{}
	h := gomidi.NewHandler(r)
	h.HandleMessage(midi.ControlChange(3, 7, 100), 0)
	h.HandleMessage(midi.ControlChange(3, 123, 0), 0)
	h.HandleMessage(midi.ControlChange(3, 120, 0), 0)
	if r.stopAll != 2 {
		t.Fatalf("got %d StopAll calls, want 2", r.stopAll)
	}
}
