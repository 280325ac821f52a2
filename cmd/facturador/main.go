package main

import (
	"os"

	"github.com/facturalo/go-afip-facturador/cmd/facturador/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
