package main

import (
	"fmt"
	"time"

	"github.com/james-see/accordionctl/pkg/config"
	"github.com/james-see/accordionctl/pkg/logging"
	"github.com/james-see/accordionctl/pkg/mirror"
	"github.com/james-see/accordionctl/pkg/notify"
	"github.com/james-see/accordionctl/pkg/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	inPort     string
	outPort    string
	logLevel   string

	settings *config.Config
	logger   *zap.Logger
)

// loadSettings merges the config file with the command line flags
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if inPort != "" {
		cfg.MIDI.InPort = inPort
	}
	if outPort != "" {
		cfg.MIDI.OutPort = outPort
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	l, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	settings, logger = cfg, l
	return nil
}

func newNotifier() *notify.Notifier {
	return &notify.Notifier{}
}

// connect opens the configured ports and attaches a mirror
func connect() (*transport.Transport, *mirror.Mirror, error) {
	tr := transport.New(transport.WithLogger(logger))
	if err := tr.ConnectPorts(settings.MIDI.InPort, settings.MIDI.OutPort); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to the device: %w", err)
	}
	m := mirror.New(tr, mirror.WithLogger(logger), mirror.WithNotifier(newNotifier()))
	return tr, m, nil
}

// drain waits until the device acknowledged every queued command
func drain(tr *transport.Transport) error {
	deadline := time.Now().Add(waitFor)
	for tr.Pending() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("device did not acknowledge %d commands within %s", tr.Pending(), waitFor)
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}
