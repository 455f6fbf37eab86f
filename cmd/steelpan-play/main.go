package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/cmd"
	"github.com/panyard/steelpan/engine"
	"github.com/panyard/steelpan/gomidi"
	"github.com/panyard/steelpan/synth"
	"github.com/panyard/steelpan/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	configFile := flag.String("config", "", "Engine config file (.yml). By default, the built-in defaults are used.")
	patchFile := flag.String("patch", "", "Patch file (.yml). By default, the built-in tenor pan is used.")
	output := flag.String("output", "", fmt.Sprintf("Audio output, one of: %s. Overrides the config.", strings.Join(cmd.OutputNames(), ", ")))
	rate := flag.Int("rate", 0, "Sample rate. Overrides the config.")
	bufferFrames := flag.Int("buffer", 0, "Frames per device buffer. Overrides the config.")
	hold := flag.Duration("hold", 400*time.Millisecond, "How long each step is held before its notes are released.")
	outFile := flag.String("o", "steelpan", "Base name of the rendered file, without extension.")
	rawOut := flag.Bool("r", false, "Render the steps to a .raw file instead of playing them. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Render the steps to a .wav file instead of playing them.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when writing a .raw file.")
	midiInput := flag.String("midi-input", "", "Play notes from the first MIDI input whose name starts with this. Use * to take the first input.")
	midiChannel := flag.Int("midi-channel", -1, "MIDI channel to listen to, 0-15. By default, all channels.")
	listMidi := flag.Bool("list-midi", false, "List the MIDI inputs and exit.")
	debug := flag.Bool("debug", false, "Log debug messages.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("steelpan-play"))
		os.Exit(0)
	}
	if *help || (flag.NArg() == 0 && *midiInput == "" && !*listMidi) {
		flag.Usage()
		os.Exit(0)
	}
	logger := cmd.SetupLogging(*debug)
	if *listMidi {
		midiContext := cmd.NewMidiContext(gomidi.NewHandler(nil), logger)
		defer midiContext.Close()
		for _, name := range midiContext.InputNames() {
			fmt.Println(name)
		}
		return
	}
	steps, err := parseSteps(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	patch, err := cmd.LoadPatchFile(*patchFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg, err := cmd.LoadConfigFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *rate > 0 {
		cfg.SampleRate = *rate
	}
	if *bufferFrames > 0 {
		cfg.BufferFrames = *bufferFrames
	}
	if *rawOut || *wavOut {
		if err := render(steps, patch, cfg.WithDefaults().SampleRate, *hold, *outFile, *rawOut, *wavOut, *pcm); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := play(ctx, logger, cfg, patch, steps, *hold, *midiInput, *midiChannel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func play(ctx context.Context, logger *slog.Logger, cfg engine.Config, patch steelpan.Patch, steps []step, hold time.Duration, midiInput string, midiChannel int) error {
	open, err := cmd.Opener(cfg.Output, logger)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, patch, open, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := eng.Initialize(); err != nil {
		return err
	}
	defer eng.Destroy()
	wait := func(d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-eng.Failures():
			return err
		case <-timer.C:
			return nil
		}
	}
	for _, s := range steps {
		for i, name := range s.notes {
			if err := eng.PlayNoteName(name, steelpan.VoiceKey(i)); err != nil {
				logger.Warn("could not play note", "note", name, "err", err)
			}
		}
		if err := wait(hold); err != nil {
			return ignoreInterrupt(err)
		}
		for i := range s.notes {
			eng.StopVoice(steelpan.VoiceKey(i))
		}
	}
	if midiInput != "" {
		handler := gomidi.NewHandler(eng)
		handler.Channel = midiChannel
		midiContext := cmd.NewMidiContext(handler, logger)
		defer midiContext.Close()
		if err := midiContext.TryToOpenBy(midiInput, midiInput == "*"); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case err := <-eng.Failures():
			return err
		}
		logger.Debug("stopping", "stats", eng.Stats(), "midiErrors", handler.Errors())
		eng.StopAll()
	}
	// let the release tails ring out
	if err, ok := engine.TimeoutReceive(eng.Failures(), tail(patch)); ok {
		return err
	}
	logger.Debug("done", "stats", eng.Stats())
	return nil
}

// render plays the steps through a synth of its own, without an audio
// device, and writes the result to disk.
func render(steps []step, patch steelpan.Patch, sampleRate int, hold time.Duration, outFile string, rawOut, wavOut, pcm bool) error {
	s, err := synth.New(patch, sampleRate, synth.DefaultMaxFrames)
	if err != nil {
		return err
	}
	holdFrames := int(hold.Seconds() * float64(sampleRate))
	tailFrames := int(tail(patch).Seconds() * float64(sampleRate))
	buffer := make(steelpan.AudioBuffer, len(steps)*holdFrames+tailFrames)
	pos := 0
	for _, st := range steps {
		for i, f := range st.freqs {
			s.Trigger(steelpan.VoiceKey(i), f)
		}
		s.Render(buffer[pos : pos+holdFrames])
		pos += holdFrames
		for i := range st.freqs {
			s.Release(steelpan.VoiceKey(i))
		}
	}
	s.Render(buffer[pos:])
	if rawOut {
		raw, err := buffer.Raw(pcm)
		if err != nil {
			return fmt.Errorf("could not generate .raw file: %w", err)
		}
		if err := os.WriteFile(outFile+".raw", raw, 0644); err != nil {
			return fmt.Errorf("could not write file %v: %w", outFile+".raw", err)
		}
	}
	if wavOut {
		name := outFile + ".wav"
		if dir := filepath.Dir(name); dir != "" {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %w", dir, err)
			}
		}
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("could not create file %v: %w", name, err)
		}
		defer f.Close()
		if err := buffer.WriteWav(f, sampleRate); err != nil {
			return fmt.Errorf("could not write file %v: %w", name, err)
		}
	}
	return nil
}

// tail is how long to keep rendering after the last release.
func tail(patch steelpan.Patch) time.Duration {
	return time.Duration((patch.Envelope.Release + 0.05) * float64(time.Second))
}

func ignoreInterrupt(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [step1 step2 ...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nEach step is a note name like C4 or F#3, notes joined with + to strike them together (C4+E4+G4), or . for a rest.\n\nFlags:\n")
	flag.PrintDefaults()
}
