package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/de-tools/pivot-reports/pkg/runtime/terminal"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cli := terminal.NewCLI(terminal.Options{
		Analyser: pivot.NewAnalyser(),
		Output:   os.Stdout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
