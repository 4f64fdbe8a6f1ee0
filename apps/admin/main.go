package main

import (
	"context"
	"log"
	"os"

	"github.com/benbjohnson/clock"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/checkin"
	"github.com/trezcool/clubhub/core/event"
	clipboardsvc "github.com/trezcool/clubhub/services/clipboard"
	logsvc "github.com/trezcool/clubhub/services/logger"
	qrsvc "github.com/trezcool/clubhub/services/qrcode"
	"github.com/trezcool/clubhub/storage/database"
	sqlxrepos "github.com/trezcool/clubhub/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// start CLI
	cli := commandLine{
		db:       db,
		eventSvc: event.NewService(sqlxrepos.NewEventRepository(db), appLogger),
		settings: checkin.SettingsFromConfig(conf.CheckIn),
		deps: checkin.Deps{
			Encoder: qrsvc.NewEncoder(),
			Logger:  appLogger,
			Clock:   clock.New(),
		},
		clipb: clipboardsvc.NewSystem(),
		out:   os.Stdout,
	}
	if len(os.Args) > 1 && os.Args[1] == "issue" {
		// the events table must exist
		errAndDie(database.Migrate(context.Background(), db))
	}

	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
