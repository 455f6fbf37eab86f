package steelpan

import (
	"errors"
	"time"
)

type (
	// VoiceKey identifies one sounding note. Hosts derive it from whatever
	// identifies the gesture that started the note, e.g. a touch pointer id or a
	// MIDI channel and key. A key is unique among the live voices and may be
	// reused once its previous voice has fully released.
	VoiceKey int32

	// Synth renders the voices of one patch. A Synth is not safe for concurrent
	// use: Trigger, Release and Render are all meant to be called from the
	// goroutine that owns the audio device.
	Synth interface {
		// Trigger starts a note at the given frequency. Triggering a key that
		// is still sounding retriggers that voice instead of allocating a new
		// one. Frequencies that cannot be rendered are ignored.
		Trigger(key VoiceKey, frequency float32)
		// Release starts the release stage of the voice. Unknown keys are
		// ignored.
		Release(key VoiceKey)
		// ReleaseAll starts the release stage of every live voice.
		ReleaseAll()
		// Render fills the whole buffer with the mix of all live voices.
		Render(buffer AudioBuffer)
		// NumVoices returns the number of live voices.
		NumVoices() int
	}

	// RenderFunc fills the whole buffer. It is called on the goroutine owned by
	// the audio device and must not block, allocate or do I/O.
	RenderFunc func(buffer AudioBuffer)

	// AudioStream is a running output stream pulling audio from a RenderFunc.
	AudioStream interface {
		// Close stops the stream and returns only after any in-flight call to
		// the RenderFunc has returned. Close is idempotent.
		Close() error
	}

	// AudioContext is an acquired audio output device.
	AudioContext interface {
		// SampleRate returns the sample rate the device actually runs at,
		// which may differ from the requested one.
		SampleRate() int
		// Play starts a stream calling render for every device buffer. If the
		// stream fails for good, onFailure is called once, on its own
		// goroutine, after the stream has stopped.
		Play(render RenderFunc, onFailure func(error)) (AudioStream, error)
		// Close releases the device.
		Close() error
	}

	// StreamOptions are the parameters used to open an output device. Zero
	// values are replaced by the defaults of DefaultStreamOptions.
	StreamOptions struct {
		SampleRate   int `yaml:"sampleRate"`
		BufferFrames int `yaml:"bufferFrames"`
		// MaxRestarts is the number of consecutive automatic restarts tried
		// after the device reports an error, before the stream gives up.
		MaxRestarts      int           `yaml:"maxRestarts"`
		RestartBackoff   time.Duration `yaml:"restartBackoff"`
		WatchdogInterval time.Duration `yaml:"watchdogInterval"`
		// HealthyAfter is how long a restarted stream has to run without
		// errors before the restart counter is reset.
		HealthyAfter time.Duration `yaml:"healthyAfter"`
	}
)

// MonoVoiceKey is the key used by the legacy single voice PlayNote call. Hosts
// never use negative keys, so it cannot clash with a pointer id.
const MonoVoiceKey VoiceKey = -1

var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrStreamFailure     = errors.New("audio stream failure")
	ErrNotRunning        = errors.New("audio engine not running")
	ErrQueueFull         = errors.New("command queue full")
	ErrInvalidPatch      = errors.New("invalid patch")
	ErrUnknownNote       = errors.New("unknown note name")
)

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		SampleRate:       48000,
		BufferFrames:     256,
		MaxRestarts:      3,
		RestartBackoff:   100 * time.Millisecond,
		WatchdogInterval: 50 * time.Millisecond,
		HealthyAfter:     5 * time.Second,
	}
}

// WithDefaults returns a copy of o where every zero field is replaced by the
// default value.
func (o StreamOptions) WithDefaults() StreamOptions {
	d := DefaultStreamOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.BufferFrames <= 0 {
		o.BufferFrames = d.BufferFrames
	}
	if o.MaxRestarts < 0 {
		o.MaxRestarts = 0
	}
	if o.RestartBackoff <= 0 {
		o.RestartBackoff = d.RestartBackoff
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = d.WatchdogInterval
	}
	if o.HealthyAfter <= 0 {
		o.HealthyAfter = d.HealthyAfter
	}
	return o
}

// BufferDuration is the time it takes the device to play one buffer.
func (o StreamOptions) BufferDuration() time.Duration {
	o = o.WithDefaults()
	return time.Duration(o.BufferFrames) * time.Second / time.Duration(o.SampleRate)
}
