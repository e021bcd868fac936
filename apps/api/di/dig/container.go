package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/draft"
	"github.com/trezcool/alama/core/gradebook"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/storage/database"
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
	badgerkv "github.com/trezcool/alama/storage/kv/badger"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the gradebook store picked by conf.Storage.
type Storage struct {
	Repo  gradebook.Repository
	close func() error
}

func (s Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
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

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Storage == "memory" {
		repo := inmemdb.NewGradebookRepository(inmemdb.Open())
		if err := inmemdb.Seed(context.Background(), repo); err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("seeding memory storage: %v", err), err)
		}
		loggerParam.Logger.Info("using memory storage, seeded with demo data")
		return Storage{Repo: repo}
	}

	setUp := func() (Storage, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return Storage{}, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return Storage{}, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return Storage{}, err
		}
		return Storage{Repo: sqlxrepos.NewGradebookRepository(db), close: db.Close}, nil
	}

	s, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return s
}

func newRepository(s Storage) gradebook.Repository {
	return s.Repo
}

func newDraftBackend(conf *core.Config, logger core.Logger) *badgerkv.Backend {
	backend, err := badgerkv.Open(conf.Drafts.Dir, conf.Drafts.InMemory)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening drafts store: %v", err), err)
	}
	return backend
}

func newDraftStore(backend *badgerkv.Backend, logger core.Logger, conf *core.Config) *draft.Store {
	return draft.NewStore(backend, logger, conf)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	gradebookSvc *gradebook.Service,
	drafts *draft.Store,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		GradebookSvc: gradebookSvc,
		Drafts:       drafts,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newRepository))
	must(c.Provide(newDraftBackend))
	must(c.Provide(newDraftStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(gradebook.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
