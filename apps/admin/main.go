package main

import (
	"context"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	emailsvc "github.com/trezcool/campus/services/email"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

// waiter is implemented by the email services that send asynchronously.
type waiter interface {
	Wait()
}

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	os.Exit(run(conf, logger, os.Args))
}

func run(conf *core.Config, logger *logsvc.RollbarLogger, args []string) int {
	defer logger.Flush()
	ctx := context.Background()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Error("opening database", errors.Wrap(err, "opening database"))
		return 1
	}
	defer func() { _ = db.Close() }()

	core.ParseEmailTemplates(conf, logger)
	var mailSvc core.EmailService
	if conf.SendgridApiKey != "" {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	} else {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	}
	if w, ok := mailSvc.(waiter); ok {
		defer w.Wait()
	}

	// start CLI
	usrRepo := sqlxrepos.NewUserRepository(db)
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		usrSvc: user.NewService(user.ServiceDeps{
			DB:       db,
			Repo:     usrRepo,
			Students: sqlxrepos.NewStudentRepository(db),
			MailSvc:  mailSvc,
			Logger:   logger,
			Conf:     conf,
		}),
	}
	if err = cli.run(ctx, args); err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		return 1
	}
	return 0
}
