package main

import (
	"log"
	"os"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/storage/database"
	sqlxrepos "github.com/trezvolt/darasa/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	validate, _ := core.NewValidator()

	cli := commandLine{
		db:       db,
		acctRepo: sqlxrepos.NewAccountRepository(db),
		validate: validate,
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
