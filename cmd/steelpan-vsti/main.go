//go:build plugin

package main

import (
	"bytes"
	"log/slog"
	"sync/atomic"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/gomidi"
	"github.com/panyard/steelpan/synth"
	"gitlab.com/gomidi/midi/v2"
	"pipelined.dev/audio/vst2"
)

const PLUGIN_NAME = "Steelpan"

var PLUGIN_ID = [4]byte{'S', 't', 'p', 'n'}

// TODO: follow the sample rate of the host instead of assuming 44100 Hz
const sampleRate = 44100

// synthPlayer plays the notes of the MIDI handler directly on the synth,
// on the process goroutine of the host.
type synthPlayer struct {
	synth atomic.Pointer[synth.Synth]
	patch atomic.Pointer[steelpan.Patch]
}

func (p *synthPlayer) TriggerVoice(key steelpan.VoiceKey, frequency float32) error {
	p.synth.Load().Trigger(key, frequency)
	return nil
}

func (p *synthPlayer) StopVoice(key steelpan.VoiceKey) error {
	p.synth.Load().Release(key)
	return nil
}

func (p *synthPlayer) StopAll() error {
	p.synth.Load().ReleaseAll()
	return nil
}

func (p *synthPlayer) load(patch steelpan.Patch) error {
	s, err := synth.New(patch, sampleRate, synth.DefaultMaxFrames)
	if err != nil {
		return err
	}
	p.patch.Store(&patch)
	p.synth.Store(s)
	return nil
}

func init() {
	var (
		version = int32(100)
	)
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		player := &synthPlayer{}
		if err := player.load(steelpan.DefaultPatch()); err != nil {
			panic(err) // the default patch is always valid
		}
		handler := gomidi.NewHandler(player)
		var events []vst2.MIDIEvent
		return vst2.Plugin{
				UniqueID:       PLUGIN_ID,
				Version:        version,
				InputChannels:  0,
				OutputChannels: 2,
				Name:           PLUGIN_NAME,
				Vendor:         "panyard/steelpan",
				Category:       vst2.PluginCategorySynth,
				Flags:          vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) {
					s := player.synth.Load()
					left := out.Channel(0)
					right := out.Channel(1)
					var buf [synth.DefaultMaxFrames][2]float32
					frame := 0
					render := func(until int) {
						for frame < until {
							n := min(until-frame, len(buf))
							chunk := steelpan.AudioBuffer(buf[:n])
							s.Render(chunk)
							for i, f := range chunk {
								left[frame+i], right[frame+i] = f[0], f[1]
							}
							frame += n
						}
					}
					for _, ev := range events {
						render(min(max(int(ev.DeltaFrames), frame), out.Frames))
						handler.HandleMessage(midi.Message(ev.Data[:]), 0)
					}
					render(out.Frames)
					events = events[:0] // reset buffer, but keep the allocated memory
				},
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				ProcessEventsFunc: func(ev *vst2.EventsPtr) {
					for i := 0; i < ev.NumEvents(); i++ {
						a := ev.Event(i)
						switch v := a.(type) {
						case *vst2.MIDIEvent:
							events = append(events, *v)
						}
					}
				},
				GetChunkFunc: func(isPreset bool) []byte {
					data, err := player.patch.Load().Marshal()
					if err != nil {
						slog.Error("could not save patch", "err", err)
						return nil
					}
					return data
				},
				SetChunkFunc: func(data []byte, isPreset bool) {
					patch, err := steelpan.ReadPatch(bytes.NewReader(data))
					if err == nil {
						err = player.load(patch)
					}
					if err != nil {
						slog.Error("could not load patch from host", "err", err)
					}
				},
			}
	}
}

func main() {}
