package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/facturalo/go-afip-facturador/afip"
	"github.com/facturalo/go-afip-facturador/afip/authority"
	"github.com/facturalo/go-afip-facturador/config"
	"github.com/facturalo/go-afip-facturador/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP invoicing service",
	Long: `Start the HTTP service.

Endpoints:
  POST /afipws/facturador  - issue an electronic invoice
  GET  /afipws/test        - health check`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	remote := authority.New(cfg.TicketCacheDir, cfg.RequestTimeout)
	connector := afip.NewConnector(remote, cfg.TicketCacheDir)
	invoicer := afip.NewInvoicer(connector, cfg.RequestTimeout)

	srv := server.New(&server.Config{
		Address:      cfg.Address,
		Environment:  cfg.Environment,
		Debug:        cfg.Debug,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.RequestTimeout,
	}, invoicer)

	return srv.Run()
}
