package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers the /debug/pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/catalog"
	"github.com/trezcool/campus/core/enrollment"
	"github.com/trezcool/campus/core/user"
	appfs "github.com/trezcool/campus/fs"
	emailsvc "github.com/trezcool/campus/services/email"
	logsvc "github.com/trezcool/campus/services/logger"
	inmemblob "github.com/trezcool/campus/storage/blob/inmem"
	minioblob "github.com/trezcool/campus/storage/blob/minio"
	"github.com/trezcool/campus/storage/database"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
	inmemsession "github.com/trezcool/campus/storage/session/inmem"
	redissession "github.com/trezcool/campus/storage/session/redis"
)

// engineMemory keeps the accounts in memory; they are lost on restart.
const engineMemory = "memory"

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Flush()

	if err = run(conf, logger); err != nil {
		logger.Fatal("running API", err)
	}
}

func run(conf *core.Config, logger *logsvc.RollbarLogger) error {
	ctx := context.Background()

	// =========================================================================
	// Set up Dependencies

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	var mailSvc core.EmailService
	if conf.SendgridApiKey != "" {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	} else {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	}

	cat, err := catalog.Load(appfs.FS)
	if err != nil {
		return errors.Wrap(err, "loading catalog")
	}

	// set up storages
	usrDeps := user.ServiceDeps{
		MailSvc:  mailSvc,
		Validate: validate,
		Logger:   logger,
		Conf:     conf,
	}
	if conf.Database.Engine == engineMemory {
		logger.Warn("accounts are kept in memory")
		mem := inmemdb.Open()
		usrDeps.Repo = inmemdb.NewUserRepository(mem)
		usrDeps.Students = inmemdb.NewStudentRepository(mem)
	} else {
		db, err := setUpDB(ctx, conf)
		if err != nil {
			return errors.Wrap(err, "setting up database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("closing database", err)
			}
		}()
		usrDeps.DB = db
		usrDeps.Repo = sqlxrepos.NewUserRepository(db)
		usrDeps.Students = sqlxrepos.NewStudentRepository(db)
	}

	var sessions enrollment.Store
	var purgeSessions func()
	if conf.Redis.URL != "" {
		client, err := redissession.NewClient(ctx, conf.Redis)
		if err != nil {
			return errors.Wrap(err, "setting up redis")
		}
		defer func() { _ = client.Close() }()
		sessions = redissession.NewStore(client, conf.Enrollment.SessionTTL)
	} else {
		store := inmemsession.NewStore(conf.Enrollment.SessionTTL)
		sessions = store
		purgeSessions = func() {
			if n := store.Purge(); n > 0 {
				logger.Debug(fmt.Sprintf("%d expired enrollment sessions purged", n))
			}
		}
	}

	var blobs core.BlobStorage
	if conf.Storage.Endpoint != "" {
		if blobs, err = minioblob.NewClient(ctx, conf.Storage); err != nil {
			return errors.Wrap(err, "setting up blob storage")
		}
	} else {
		logger.Warn("documents are kept in memory")
		blobs = inmemblob.NewStorage()
	}
	usrDeps.Blobs = blobs

	// set up services
	usrSvc := user.NewService(usrDeps)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	enrollments := enrollment.NewController(enrollment.Options{
		Store:         sessions,
		Lookup:        usrSvc,
		Registrar:     usrSvc,
		Storage:       blobs,
		Catalog:       cat,
		Validator:     enrollment.NewValidator(validate, conf.Enrollment.AllowedEmailDomains),
		Assembler:     enrollment.NewAssembler(validate),
		Logger:        logger,
		Metrics:       enrollment.NewMetrics(registry),
		MaxFileSize:   conf.Enrollment.MaxFileSize,
		RedirectDelay: conf.Enrollment.RedirectDelay,
		RedirectPath:  conf.Enrollment.RedirectPath,
	})

	// =========================================================================
	// Start Services

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{Address: conf.Server.Address, Shutdown: shutdown},
		&echoapi.Deps{
			Conf:        conf,
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			UserSvc:     usrSvc,
			Enrollments: enrollments,
			Catalog:     cat,
			MailSvc:     mailSvc,
			Gatherer:    registry,
		},
	)

	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	debugServer := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
		return nil
	})
	if purgeSessions != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					purgeSessions()
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		select {
		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		case <-gctx.Done():
		}

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		_ = debugServer.Shutdown(sctx)
		if err := server.Stop(sctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
