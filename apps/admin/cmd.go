package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/clubhub/core/checkin"
	"github.com/trezcool/clubhub/core/event"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sqlx.DB
	eventSvc event.ServiceInterface
	settings checkin.Settings
	deps     checkin.Deps // Downloader and Clipboard are set per command
	clipb    checkin.Clipboard
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  issue -event ID [-env ENV] [-out DIR] [-copy] [-watch DURATION] - render the check-in QR of an event")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	issueCmd := flag.NewFlagSet("issue", flag.ContinueOnError)
	issueCmd.SetOutput(cli.out)
	issueEvent := issueCmd.String("event", "", "The ID of the event.")
	issueEnv := issueCmd.String("env", string(checkin.EnvProd), "The environment of the link: local, prod or mobile.")
	issueOut := issueCmd.String("out", "", "Save the displayed QR image in this directory.")
	issueCopy := issueCmd.Bool("copy", false, "Copy the link to the clipboard.")
	issueWatch := issueCmd.Duration("watch", 0, "Keep the session open and print the rotation for this long.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "issue":
		if err := issueCmd.Parse(args[2:]); err != nil {
			if err == flag.ErrHelp {
				return errHelp
			}
			return err
		}
		if *issueEvent == "" {
			issueCmd.Usage()
			return errHelp
		}
		env, err := checkin.ParseEnvironment(*issueEnv)
		if err != nil {
			return err
		}
		return cli.issue(issueOptions{
			eventID: *issueEvent,
			env:     env,
			outDir:  *issueOut,
			copy:    *issueCopy,
			watch:   *issueWatch,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
