package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/clubhub/apps/api/echo"
	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/checkin"
	"github.com/trezcool/clubhub/core/event"
	downloadsvc "github.com/trezcool/clubhub/services/download"
	logsvc "github.com/trezcool/clubhub/services/logger"
	qrsvc "github.com/trezcool/clubhub/services/qrcode"
	"github.com/trezcool/clubhub/storage/database"
	sqlxrepos "github.com/trezcool/clubhub/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

// newRegistry wires the check-in sessions to the QR encoder and the download directory.
// The API runs headless: there is no clipboard to copy links to.
func newRegistry(conf *core.Config, logger core.Logger) *checkin.Registry {
	dir := conf.CheckIn.DownloadDir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(conf.WorkDir, dir)
	}
	deps := checkin.Deps{
		Encoder: qrsvc.NewEncoder(),
		Logger:  logger,
	}
	if dir != "" {
		deps.Downloader = downloadsvc.NewDirSaver(dir)
	}
	return checkin.NewRegistry(checkin.SettingsFromConfig(conf.CheckIn), deps)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewEventRepository))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(event.NewService, dig.As(new(event.ServiceInterface))))
	must(c.Provide(newRegistry))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
