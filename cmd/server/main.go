// Package main is the entry point for the accordionctl API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/accordionctl/pkg/api"
	"github.com/james-see/accordionctl/pkg/config"
	"github.com/james-see/accordionctl/pkg/logging"
	"github.com/james-see/accordionctl/pkg/mirror"
	"github.com/james-see/accordionctl/pkg/notify"
	"github.com/james-see/accordionctl/pkg/transport"
	"github.com/james-see/accordionctl/pkg/workspace"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Config file")
	addr := flag.String("addr", "", "Listen address (default from config)")
	dir := flag.String("dir", "", "Directory sessions may open and save keyboard files in (default from config)")
	in := flag.String("in", "", "MIDI input port")
	out := flag.String("out", "", "MIDI output port")
	flag.Parse()

	if err := run(*configPath, *addr, *dir, *in, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, dir, in, out string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.API.Addr
	}
	if dir == "" {
		dir = cfg.API.Dir
	}
	if in == "" {
		in = cfg.MIDI.InPort
	}
	if out == "" {
		out = cfg.MIDI.OutPort
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer transport.CloseDriver()

	tr := transport.New(transport.WithLogger(log))
	defer tr.Close()
	if err := tr.ConnectPorts(in, out); err != nil {
		log.Warn("device not connected", zap.Error(err))
	}

	n := &notify.Notifier{}
	m := mirror.New(tr, mirror.WithLogger(log), mirror.WithNotifier(n))
	w := workspace.New(workspace.WithLogger(log), workspace.WithNotifier(n))

	fmt.Printf("Starting accordionctl API server on %s...\n", addr)
	fmt.Printf("Swagger docs available at http://%s/swagger/index.html\n", addr)
	return api.NewServer(tr, m, w, api.WithLogger(log), api.WithKeyboardDir(dir)).Run(addr)
}
