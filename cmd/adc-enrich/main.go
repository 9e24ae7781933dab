// Package main is the entry point of the adc-enrich command.
package main

import (
	"os"

	"github.com/adc-ontology-enricher/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
