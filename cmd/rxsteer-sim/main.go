// Command rxsteer-sim exercises receive steering of a NIC port on an emulated device.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"
	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/core/yamlflag"
	"go.uber.org/zap"
	"go4.org/must"
)

var logger = logging.New("main")

var (
	cfg simConfig
	sim *console
)

var app = &cli.App{
	Usage: "Exercise receive steering on an emulated NIC.",
	Flags: []cli.Flag{
		&cli.GenericFlag{
			Name:  "config",
			Usage: "simulation config `YAML`, or @filename",
			Value: yamlflag.New(&cfg, configSchema),
		},
	},
	Before: func(c *cli.Context) (e error) {
		sim, e = newConsole(cfg, c.App.Writer)
		return e
	},
	After: func(c *cli.Context) error {
		if sim != nil {
			must.Close(sim)
		}
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "Execute console commands from script files.",
			ArgsUsage: "SCRIPT...",
			Action: func(c *cli.Context) error {
				for _, filename := range c.Args().Slice() {
					if e := runScript(filename); e != nil {
						return e
					}
				}
				return nil
			},
		},
		{
			Name:   "shell",
			Usage:  "Open an interactive console.",
			Action: func(c *cli.Context) error { return runShell() },
		},
	},
}

func runScript(filename string) error {
	file, e := os.Open(filename)
	if e != nil {
		return e
	}
	defer file.Close()

	quit, e := runLines(file)
	if e != nil {
		return fmt.Errorf("%s:%w", filename, e)
	}
	if quit {
		logger.Info("script requested exit", zap.String("filename", filename))
	}
	return nil
}

// runLines executes commands read from r until EOF or exit.
func runLines(r io.Reader) (quit bool, e error) {
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if quit, e = sim.Exec(scanner.Text()); e != nil {
			return false, fmt.Errorf("%d: %w", lineNo, e)
		}
		if quit {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func runShell() error {
	rl, e := readline.NewEx(&readline.Config{
		Prompt:          "rxsteer> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    consoleCompleter(),
	})
	if e != nil {
		return e
	}
	defer rl.Close()
	sim.out = rl.Stdout()

	for {
		line, e := rl.Readline()
		switch {
		case errors.Is(e, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(e, io.EOF):
			return nil
		case e != nil:
			return e
		}

		quit, e := sim.Exec(line)
		if e != nil {
			fmt.Fprintln(rl.Stderr(), "error:", e)
		}
		if quit {
			return nil
		}
	}
}

func main() {
	if e := app.Run(os.Args); e != nil {
		logger.Fatal("app.Run error", zap.Error(e))
	}
}
