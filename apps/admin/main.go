package main

import (
	"log"
	"os"

	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/course"
	"github.com/maoni-app/maoni/core/user"
	emailsvc "github.com/maoni-app/maoni/services/email"
	"github.com/maoni-app/maoni/storage/database"
	sqlxrepos "github.com/maoni-app/maoni/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	mailSvc := emailsvc.NewConsoleService(core.Conf.AppName, core.Conf.DefaultFromEmail.Address, core.NewStdLogger(logger))
	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  user.NewService(usrRepo, mailSvc),
		crsSvc:  course.NewService(sqlxrepos.NewCourseRepository(db), usrRepo),
	}
	if err := cli.run(os.Args); err != nil {
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
