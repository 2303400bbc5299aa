package transport

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ListInputPorts returns the names of available MIDI input ports
func ListInputPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// ListOutputPorts returns the names of available MIDI output ports
func ListOutputPorts() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

func findInPort(name string) (drivers.In, error) {
	if name == "" {
		ins := midi.GetInPorts()
		if len(ins) == 0 {
			return nil, fmt.Errorf("no MIDI input ports available")
		}
		return ins[0], nil
	}
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("input port not found: %s", name)
	}
	return in, nil
}

func findOutPort(name string) (drivers.Out, error) {
	if name == "" {
		outs := midi.GetOutPorts()
		if len(outs) == 0 {
			return nil, fmt.Errorf("no MIDI output ports available")
		}
		return outs[0], nil
	}
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("output port not found: %s", name)
	}
	return out, nil
}

// CloseDriver releases the registered MIDI driver. Call once at process exit.
func CloseDriver() {
	midi.CloseDriver()
}
