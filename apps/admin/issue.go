package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhub/core/checkin"
	downloadsvc "github.com/trezcool/clubhub/services/download"
)

type issueOptions struct {
	eventID string
	env     checkin.Environment
	outDir  string
	copy    bool
	watch   time.Duration
}

// issue opens a check-in session for an event, prints its link and optionally
// copies the link, saves the displayed image and follows the rotation.
func (cli *commandLine) issue(opts issueOptions) error {
	ctx := context.Background()

	evt, err := cli.eventSvc.GetByID(ctx, opts.eventID)
	if err != nil {
		return errors.Wrap(err, "finding event")
	}

	deps := cli.deps
	if opts.copy {
		deps.Clipboard = cli.clipb
	}
	if opts.outDir != "" {
		deps.Downloader = downloadsvc.NewDirSaver(opts.outDir)
	}

	s := checkin.Open(ctx, evt.CheckInTarget(), cli.settings, deps)
	defer s.Close()
	s.Wait()

	snap := s.Snapshot()
	if snap.Environments[opts.env] != checkin.EnvReady {
		return errors.Errorf("no %s QR code could be rendered for event %s", opts.env, evt.ID)
	}

	link, _ := s.Link(opts.env)
	fmt.Fprintf(cli.out, "%s (%s)\n%s\n", evt.Name, evt.CheckInCode, link)

	if opts.copy {
		s.CopyLink(opts.env)
		fmt.Fprintln(cli.out, "link copied to the clipboard")
	}
	if opts.outDir != "" {
		name := s.DownloadImage(opts.env)
		if name == "" {
			return errors.Errorf("saving the QR image in %s failed", opts.outDir)
		}
		fmt.Fprintf(cli.out, "saved %s\n", name)
	}

	if opts.watch > 0 {
		cli.follow(s, opts.watch)
	}
	return nil
}

// follow prints the displayed variant and countdown on every tick for `d`.
func (cli *commandLine) follow(s *checkin.Session, d time.Duration) {
	updates := s.Subscribe()
	timeout := cli.deps.Clock.After(d)
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			preset := checkin.StylePresets[snap.DisplayedIndex].Name
			fmt.Fprintf(cli.out, "showing %s, next in %ds\n", preset, snap.CountdownSeconds)
		case <-timeout:
			return
		}
	}
}
