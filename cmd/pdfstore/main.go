// Package main runs one operation against the local pdf store.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	pdfstorecmd "github.com/louisbranch/pdfstore/internal/cmd/pdfstore"
	"github.com/louisbranch/pdfstore/internal/platform/config"
	apperrors "github.com/louisbranch/pdfstore/internal/platform/errors"
)

func main() {
	cfg, err := pdfstorecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.ExitCodef(apperrors.ExitUsage, "parse flags: %v", err)
	}
	log.SetPrefix("[PDFSTORE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pdfstorecmd.Run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		stop()
		code := apperrors.CodeOf(err).ExitCode()
		if errors.Is(err, pdfstorecmd.ErrUsage) {
			code = apperrors.ExitUsage
		}
		config.ExitCodef(code, "pdfstore %s: %v", cfg.Operation, err)
	}
}
