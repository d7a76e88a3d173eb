// Package main starts the scheduled mailer, either inside AWS Lambda or as a
// local one-shot or schedule loop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mailercmd "github.com/iuprojects/lcnotes/internal/cmd/mailer"
	"github.com/iuprojects/lcnotes/internal/platform/config"
)

func main() {
	if err := config.LoadDotEnv(mailercmd.EnvFileFromArgs(os.Args[1:])); err != nil {
		config.Exitf("load env file: %v", err)
	}
	cfg, err := mailercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[MAILER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mailercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("mailer: %v", err)
	}
}
