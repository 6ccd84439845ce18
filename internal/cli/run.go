package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stopmidnight/taskboard/internal/config"
	"github.com/stopmidnight/taskboard/internal/notify"
)

var (
	errFlagRequiresArg = errors.New("flag requires an argument")
	errUnknownFlag     = errors.New("unknown flag")
)

const (
	consumedNone = 0
	consumedOne  = 1
	consumedTwo  = 2
	helpFlag     = "--help"
)

// Run is the main entry point. Returns exit code. A signal on sigCh cancels
// the running command.
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, nil)

		return 1
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out, nil)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		Overrides:       config.Overrides{Root: flags.root},
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger := config.NewLogger(cfg, errOut)

	a := newApp(&cfg, logger, notify.NewHub(), nil)
	defer a.Close()

	commands := []*Command{
		ServeCmd(&cfg, logger),
		CreateCmd(a),
		MoveCmd(a),
		LsCmd(a),
		RegenCmd(a),
		PrintConfigCmd(&cfg),
	}

	name := flags.remaining[0]

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return cmd.Run(ctx, NewIO(out, errOut), flags.remaining[1:])
}

type globalFlags struct {
	workDir    string
	configPath string
	root       string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == consumedNone {
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a global flag at args[idx]. Returns the number of
// args consumed, 0 if args[idx] is not a global flag.
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	valued := []struct {
		short, long string
		target      *string
	}{
		{"-C", "--cwd", &flags.workDir},
		{"-c", "--config", &flags.configPath},
		{"", "--root", &flags.root},
	}

	for _, f := range valued {
		if arg == f.long || (f.short != "" && arg == f.short) {
			if idx+1 >= len(args) {
				return consumedNone, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
			}

			*f.target = args[idx+1]

			return consumedTwo, nil
		}

		if after, ok := strings.CutPrefix(arg, f.long+"="); ok {
			*f.target = after

			return consumedOne, nil
		}
	}

	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", errUnknownFlag, arg)
	}

	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, `taskboard - markdown task board server

Usage: taskboard [options] <command> [args]

Options:
  -C, --cwd <dir>      Run as if started in <dir>
  -c, --config <file>  Use specified config file
  --root <dir>         Doc root holding tasks/ [default: docs/logs]

Commands:`)

	if commands == nil {
		commands = []*Command{
			ServeCmd(&config.Config{}, nil),
			CreateCmd(nil),
			MoveCmd(nil),
			LsCmd(nil),
			RegenCmd(nil),
			PrintConfigCmd(&config.Config{}),
		}
	}

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}
}
