// Command docindex is the document ingestion and hybrid search CLI.
package main

import (
	"fmt"
	"os"

	"github.com/lumenforge/docindex/internal/adapters/driving/cli"
)

func main() {
	app, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitFatal)
	}
	defer app.Close()

	cli.SetServices(app.Services())
	os.Exit(cli.Execute())
}
