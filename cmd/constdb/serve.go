package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/constdb/httpapi"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the ConstDB HTTP server",
	Long:    `Start the ConstDB HTTP server. The server runs until interrupted and closes every database on the way out.`,
	PreRunE: bindFlags,
	RunE:    runServe,
}

func init() {
	key := "endpoint"
	serveCmd.Flags().String(key, "0.0.0.0:8080", wrapString("The address on which the API will listen"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	engine, err := openEngine(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("close failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return httpapi.New(engine, logger).ListenAndServe(ctx, viper.GetString("endpoint"))
}
