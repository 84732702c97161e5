// grue - a terminal interpreter for v3 Z-machine story files
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/grue/config"
	"github.com/chazu/grue/saves"
	"github.com/chazu/grue/zdebug"
	"github.com/chazu/grue/zmachine"
	"github.com/chazu/grue/zterm"

	_ "github.com/tliron/commonlog/simple"
)

const (
	exitOK    = 0
	exitFault = 1
	exitUsage = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	noHighlight := flag.Bool("no-highlight", false, "Disable styling of object names")
	plain := flag.Bool("plain", false, "Suppress all ANSI output (for piping)")
	seed := flag.Int64("seed", 0, "Seed the random generator deterministically")
	saveDir := flag.String("save-dir", "", "Directory for save files and their catalog")
	configPath := flag.String("config", "", "Path to a grue.toml (default: user config dir, then cwd)")
	trace := flag.Bool("trace", false, "Log every executed instruction")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: grue [options] story.z3\n\n")
		fmt.Fprintf(os.Stderr, "Runs a version-3 Z-machine story file in the terminal.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nDuring play, lines starting with $ go to the debugger ($help lists them).\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return exitUsage
	}
	storyPath := flag.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	verbosity := cfg.Log.Verbosity
	if *trace {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("grue")

	story, err := os.ReadFile(storyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", storyPath, err)
		return exitUsage
	}

	dir := cfg.Game.SaveDir
	if *saveDir != "" {
		dir = *saveDir
	}
	if dir == "" {
		dir = "."
	}
	store, err := saves.Open(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer store.Close()

	saver := &storeSaver{store: store, defaultName: slotName(storyPath)}
	term := zterm.New(zterm.Options{
		Plain:     *plain || cfg.Interface.Plain,
		Highlight: cfg.Interface.Highlight && !*noHighlight,
		Saver:     saver,
	})
	saver.term = term

	// The debugger intercepts $-lines before the game sees them.
	host := &debugHost{Terminal: term}
	machine, err := zmachine.NewMachine(story, host)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFault
	}
	machine.SetTrace(*trace)
	if *seed != 0 {
		machine.Seed(*seed)
	} else if cfg.Game.Seed != 0 {
		machine.Seed(cfg.Game.Seed)
	}

	saver.machine = machine
	host.debugger = zdebug.New(machine, os.Stdout)

	term.Init()
	defer term.Reset()

	if err := machine.Run(); err != nil {
		term.Reset()
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		return exitFault
	}
	log.Info("clean quit")
	return exitOK
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

func slotName(storyPath string) string {
	base := filepath.Base(storyPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
