package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/internhub/go-portal-gate/internal/config"
	"github.com/internhub/go-portal-gate/server"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	for {
		if err := run(logger); err != nil {
			logger.Error().Err(err).Msg("error running portal gateway")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	logger.Info().Msg("portal gateway stopped")
}

func run(logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	gateway, err := server.New(c, logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	gateway.Start(context.Background())
	defer gateway.Close()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: gateway}
	go listenAndServe(logger, httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(logger zerolog.Logger, server *http.Server) {
	logger.Info().Str("addr", server.Addr).Msg("portal gateway listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
