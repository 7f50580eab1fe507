package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezvolt/darasa/apps/api/echo"
	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
	"github.com/trezvolt/darasa/core/classroom"
	emailsvc "github.com/trezvolt/darasa/services/email"
	logsvc "github.com/trezvolt/darasa/services/logger"
	storagesvc "github.com/trezvolt/darasa/services/storage"
	"github.com/trezvolt/darasa/storage/database"
	inmemdb "github.com/trezvolt/darasa/storage/database/inmem"
	sqlxrepos "github.com/trezvolt/darasa/storage/database/sqlx"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("%+v", err)
	}

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up repositories
	var (
		acctRepo account.Repository
		roomRepo classroom.Repository
	)
	if conf.Debug {
		memDB, err := inmemdb.Open()
		if err != nil {
			logger.Fatal("opening in-memory store", err)
		}
		acctRepo = inmemdb.NewAccountRepository(memDB)
		roomRepo = inmemdb.NewClassroomRepository(memDB)
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error("closing database", err)
			}
		}()
		acctRepo = sqlxrepos.NewAccountRepository(db)
		roomRepo = sqlxrepos.NewClassroomRepository(db)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}

	var fileStorage core.FileStorage
	if conf.Debug {
		fileStorage = storagesvc.NewInMemStorage()
	} else {
		fileStorage, err = storagesvc.NewS3Storage(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
		}
	}

	acctSvc := account.NewService(conf, acctRepo, mailSvc)
	roomSvc := classroom.NewService(roomRepo)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("%s initializing in %s mode", conf.AppName, conf.Env))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:         conf,
		Logger:       logger,
		AccountSvc:   acctSvc,
		ClassroomSvc: roomSvc,
		FileStorage:  fileStorage,
		Validate:     validate,
		Translator:   translator,
	}, shutdown)

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
