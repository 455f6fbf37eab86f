//go:build cgo

package gomidi

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	// RTMIDIContext listens to one MIDI input port at a time and hands its
	// messages to a Handler.
	RTMIDIContext struct {
		handler *Handler
		logger  *slog.Logger
		driver  *rtmididrv.Driver

		mu        sync.Mutex
		currentIn drivers.In
		stop      func()
	}

	RTMIDIDevice struct {
		context *RTMIDIContext
		in      drivers.In
	}
)

// NewContext opens the rtmidi driver. If the driver is not available, the
// context has no input devices.
func NewContext(handler *Handler, logger *slog.Logger) *RTMIDIContext {
	if logger == nil {
		logger = slog.Default()
	}
	c := &RTMIDIContext{handler: handler, logger: logger}
	driver, err := rtmididrv.New()
	if err != nil {
		logger.Warn("MIDI driver not available", "err", err)
		return c
	}
	c.driver = driver
	return c
}

// InputDevices yields the MIDI input ports of the system.
func (c *RTMIDIContext) InputDevices(yield func(RTMIDIDevice) bool) {
	if c.driver == nil {
		return
	}
	ins, err := c.driver.Ins()
	if err != nil {
		c.logger.Warn("cannot list MIDI inputs", "err", err)
		return
	}
	for _, in := range ins {
		if !yield(RTMIDIDevice{context: c, in: in}) {
			return
		}
	}
}

// InputNames returns the names of the MIDI input ports.
func (c *RTMIDIContext) InputNames() []string {
	var names []string
	for d := range c.InputDevices {
		names = append(names, d.String())
	}
	return names
}

// Open starts listening to the device, closing the input open before.
func (d RTMIDIDevice) Open() error {
	c := d.context
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentIn == d.in {
		return nil
	}
	if c.driver == nil {
		return errors.New("no MIDI driver available")
	}
	c.closeInput()
	if err := d.in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(d.in, c.handler.HandleMessage)
	if err != nil {
		d.in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.currentIn = d.in
	c.stop = stop
	c.logger.Info("listening to MIDI input", "device", d.in.String())
	return nil
}

func (d RTMIDIDevice) String() string {
	return d.in.String()
}

// TryToOpenBy opens the first input whose name starts with namePrefix, or
// the first input at all if takeFirst is set.
func (c *RTMIDIContext) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	for input := range c.InputDevices {
		if takeFirst || strings.HasPrefix(input.String(), namePrefix) {
			return input.Open()
		}
	}
	if takeFirst {
		return errors.New("could not find any MIDI input")
	}
	return fmt.Errorf("could not find a MIDI input starting with %q", namePrefix)
}

func (c *RTMIDIContext) closeInput() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.currentIn = nil
}

func (c *RTMIDIContext) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return
	}
	c.closeInput()
	c.driver.Close()
	c.driver = nil
}
