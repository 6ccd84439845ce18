package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/stopmidnight/taskboard/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("root=" + cfg.RootAbs)
	io.Println("port=" + strconv.Itoa(cfg.Port))

	if cfg.AltViewerRootAbs != "" {
		io.Println("alt_viewer_root=" + cfg.AltViewerRootAbs)
	}

	io.Println("default_author=" + cfg.DefaultAuthor)
	io.Println("undo_window=" + cfg.UndoWindow.Std().String())
	io.Println("keepalive_interval=" + cfg.KeepaliveInterval.Std().String())
	io.Println("regen_debounce=" + cfg.RegenDebounce.Std().String())

	if cfg.RedisURL != "" {
		io.Println("redis_url=" + cfg.RedisURL)
		io.Println("redis_channel=" + cfg.RedisChannel)
	}

	io.Println("log_level=" + cfg.LogLevel)
	io.Println("log_format=" + cfg.LogFormat)

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
