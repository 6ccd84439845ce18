package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/stopmidnight/taskboard/internal/board"
	"github.com/stopmidnight/taskboard/internal/task"
)

var (
	errTitleRequired    = errors.New("title is required")
	errFilenameRequired = errors.New("filename is required")
	errStatusRequired   = errors.New("status is required")
	errTooManyArgs      = errors.New("too many arguments")
)

// CreateCmd returns the create command.
func CreateCmd(a *app) *Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	body := flags.StringP("body", "b", "", "Body text")
	status := flags.StringP("status", "s", task.StatusTodo, "Status: "+strings.Join(task.Statuses, "|"))
	author := flags.StringP("author", "a", "", "Author [default: default_author from config]")

	return &Command{
		Flags: flags,
		Usage: "create <title> [flags]",
		Short: "Create a task, prints its filename",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
				return errTitleRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(args[1:], " "))
			}

			created, err := a.board.CreateTask(ctx, board.CreateInput{
				Title:  args[0],
				Body:   *body,
				Status: *status,
				Author: *author,
			})
			if err != nil {
				return err
			}

			o.Println(created.Filename)

			return nil
		},
	}
}

// MoveCmd returns the move command.
func MoveCmd(a *app) *Command {
	flags := flag.NewFlagSet("move", flag.ContinueOnError)
	author := flags.StringP("author", "a", "", "Author [default: "+board.DefaultStatusAuthor+"]")

	return &Command{
		Flags: flags,
		Usage: "move <filename> <status> [flags]",
		Short: "Change the status of a task, prints the new filename",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			switch len(args) {
			case 0:
				return errFilenameRequired
			case 1:
				return errStatusRequired
			case 2:
			default:
				return fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(args[2:], " "))
			}

			newName, err := a.board.Transition(ctx, args[0], args[1], *author)
			if err != nil {
				return err
			}

			o.Println(newName)

			return nil
		},
	}
}

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	status := flags.String("status", "", "Only list tasks with this status")

	return &Command{
		Flags: flags,
		Usage: "ls [flags]",
		Short: "List tasks as filename<TAB>title",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if *status != "" && !task.IsValidStatus(*status) {
				return fmt.Errorf("%w: %q", task.ErrInvalidStatus, *status)
			}

			summaries, err := a.board.List(ctx)
			if err != nil {
				return err
			}

			for _, s := range summaries {
				if s.Status == "" {
					o.Warn(s.Filename+" has no known status suffix", "rename it to end in _{"+strings.Join(task.Statuses, "|")+"}.md")

					continue
				}

				if *status != "" && s.Status != *status {
					continue
				}

				o.Printf("%s\t%s\n", s.Filename, s.Title)
			}

			return nil
		},
	}
}

// RegenCmd returns the regen command.
func RegenCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("regen", flag.ContinueOnError),
		Usage: "regen",
		Short: "Rebuild tasks.json, INDEX.md and .views",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if err := a.generator.Run(ctx); err != nil {
				return err
			}

			o.Println("regenerated", a.cfg.RootAbs)

			return nil
		},
	}
}
