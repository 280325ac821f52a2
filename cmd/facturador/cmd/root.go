package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "facturador",
	Short: "Multi-tenant AFIP electronic invoicing service",
	Long: `Facturador issues electronic invoices against AFIP's WSAA/WSFEv1
web services, managing authenticated sessions per tenant and recovering
from the transient failures the authority is known for.`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cobra.OnInitialize(func() {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
}
