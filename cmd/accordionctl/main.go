// Package main is the entry point for the accordionctl CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/james-see/accordionctl/pkg/api"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/mirror"
	"github.com/james-see/accordionctl/pkg/storage"
	"github.com/james-see/accordionctl/pkg/transport"
	"github.com/james-see/accordionctl/pkg/tui"
	"github.com/james-see/accordionctl/pkg/workspace"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile string
	saveDir    string
	serverAddr string
	serverDir  string
	waitFor    time.Duration
)

func main() {
	err := rootCmd.Execute()
	transport.CloseDriver()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "accordionctl",
	Short: "Mirror and edit the keyboards of a MIDI accordion controller",
	Long: `accordionctl talks to a MIDI accordion controller over SysEx. It lists,
stores, renames and deletes the keyboards kept on the device, switches the
active keyboard of each side, and converts keyboard files between formats.

Examples:
  accordionctl ports
  accordionctl fetch --save-dir ./backup
  accordionctl push melody.json
  accordionctl convert melody.json -o melody.syx
  accordionctl tui
  accordionctl serve --addr localhost:8080 --dir ./keyboards`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: loadSettings,
	SilenceUsage:      true,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a keyboard file between .json, .syx and .mid",
	Long:  `Reads the input keyboard and writes it in the format given by the output file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print the keys of a keyboard file",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "List the keyboards stored on the device",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

var pushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Make a keyboard file the active keyboard of its side",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

var storeCmd = &cobra.Command{
	Use:   "store <file>",
	Short: "Store a keyboard file on the device",
	Args:  cobra.ExactArgs(1),
	RunE:  runStore,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <left96|right81> <name>",
	Short: "Delete a stored keyboard",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

var renameCmd = &cobra.Command{
	Use:   "rename <left96|right81> <name> <new-name>",
	Short: "Rename a stored keyboard",
	Args:  cobra.ExactArgs(3),
	RunE:  runRename,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the current settings to the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default is the user config directory)")
	flags.StringVar(&inPort, "in", "", "MIDI input port (default from config, else the first port)")
	flags.StringVar(&outPort, "out", "", "MIDI output port (default from config, else the first port)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.DurationVar(&waitFor, "wait", 3*time.Second, "How long to wait for the device")

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// fetch command
	fetchCmd.Flags().StringVar(&saveDir, "save-dir", "", "Save every fetched keyboard as JSON into this directory")

	// serve command
	serveCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serverDir, "dir", "", "Directory sessions may open and save keyboard files in (default from config)")

	// Add commands
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	fmt.Println("Inputs:")
	for _, name := range transport.ListInputPorts() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("Outputs:")
	for _, name := range transport.ListOutputPorts() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := storage.Convert(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	k, err := storage.Load(args[0])
	if err != nil {
		return err
	}
	printKeyboard(k)
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	tr, m, err := connect()
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := m.FetchStored(); err != nil {
		return err
	}
	// the device answers with one message per keyboard and no end marker
	time.Sleep(waitFor)

	stored := m.Stored()
	fmt.Printf("%d stored keyboards\n", len(stored))
	for _, k := range stored {
		fmt.Printf("  %-8s %s\n", k.Layout(), k.Name)
	}
	for _, side := range []keyboard.Side{keyboard.SideLeft, keyboard.SideRight} {
		if k := m.Current(side); k != nil {
			fmt.Printf("current %s: %s\n", side, k.Name)
		}
	}

	if saveDir == "" {
		return nil
	}
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return err
	}
	for _, k := range stored {
		path := filepath.Join(saveDir, fileName(k))
		if err := storage.Save(path, k); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", path)
	}
	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	return withKeyboardFile(args[0], (*mirror.Mirror).PushCurrent)
}

func runStore(cmd *cobra.Command, args []string) error {
	return withKeyboardFile(args[0], (*mirror.Mirror).Store)
}

func withKeyboardFile(path string, fn func(*mirror.Mirror, *keyboard.Keyboard) error) error {
	k, err := storage.Load(path)
	if err != nil {
		return err
	}
	tr, m, err := connect()
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := fn(m, k); err != nil {
		return err
	}
	if err := drain(tr); err != nil {
		return err
	}
	fmt.Printf("Sent %s (%s)\n", k.Name, k.Layout())
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	layout, err := keyboard.ParseLayout(args[0])
	if err != nil {
		return err
	}
	tr, m, err := connect()
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := m.Delete(layout, args[1]); err != nil {
		return err
	}
	return drain(tr)
}

func runRename(cmd *cobra.Command, args []string) error {
	layout, err := keyboard.ParseLayout(args[0])
	if err != nil {
		return err
	}
	tr, m, err := connect()
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := m.Rename(layout, args[1], args[2]); err != nil {
		return err
	}
	return drain(tr)
}

func runTUI(cmd *cobra.Command, args []string) error {
	tr, m, err := connect()
	if err != nil {
		return err
	}
	defer tr.Close()
	return tui.Run(m, tr)
}

func runServe(cmd *cobra.Command, args []string) error {
	tr := transport.New(transport.WithLogger(logger))
	defer tr.Close()
	if err := tr.ConnectPorts(settings.MIDI.InPort, settings.MIDI.OutPort); err != nil {
		// the API still serves files and sessions without a device
		logger.Warn("device not connected", zap.Error(err))
	}

	n := newNotifier()
	m := mirror.New(tr, mirror.WithLogger(logger), mirror.WithNotifier(n))
	w := workspace.New(workspace.WithLogger(logger), workspace.WithNotifier(n))

	addr := serverAddr
	if addr == "" {
		addr = settings.API.Addr
	}
	dir := serverDir
	if dir == "" {
		dir = settings.API.Dir
	}
	fmt.Printf("Starting API server on %s...\n", addr)
	fmt.Printf("Swagger docs available at http://%s/swagger/index.html\n", addr)
	return api.NewServer(tr, m, w, api.WithLogger(logger), api.WithKeyboardDir(dir)).Run(addr)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := settings.Save(configPath); err != nil {
		return err
	}
	fmt.Println("Config written")
	return nil
}

// fileName turns a keyboard name into a JSON file name
func fileName(k *keyboard.Keyboard) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, k.Name)
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s-%s.json", k.Layout(), name)
}

func printKeyboard(k *keyboard.Keyboard) {
	fmt.Printf("%s (%s)\n", k.Name, k.Layout())
	index := 1
	for row, n := range k.Layout().Rows() {
		fmt.Printf("row %d:", row+1)
		for i := 0; i < n; i++ {
			a, _ := k.Get(index)
			if a == nil {
				fmt.Print(" -")
			} else {
				fmt.Printf(" %v", a)
			}
			index++
		}
		fmt.Println()
	}
}
