package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/maoni-app/maoni/apps/api/echo"
	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/analytics"
	"github.com/maoni-app/maoni/core/course"
	"github.com/maoni-app/maoni/core/feedback"
	"github.com/maoni-app/maoni/core/user"
	emailsvc "github.com/maoni-app/maoni/services/email"
	logsvc "github.com/maoni-app/maoni/services/logger"
	"github.com/maoni-app/maoni/storage/database"
	sqlxrepos "github.com/maoni-app/maoni/storage/database/sqlx"
)

func main() {
	// set up logger
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	if err := core.Conf.Validate(); err != nil {
		logger.Fatal(fmt.Sprintf("invalid configuration: %v", err), err)
	}

	// set up DB
	db, err := setUpDB(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService(core.Conf.AppName, core.Conf.DefaultFromEmail.Address, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(core.Conf.SendgridApiKey, core.Conf.AppName, core.Conf.DefaultFromEmail.Address, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db), usrRepo)
	fbkSvc := feedback.NewService(sqlxrepos.NewFeedbackRepository(db), crsSvc)
	anlSvc := analytics.NewService(fbkSvc, crsSvc)

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        core.Conf.Address(),
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		FeedbackSvc:    fbkSvc,
		AnalyticsSvc:   anlSvc,
		Logger:         logger,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	go server.Start()

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
