package main

import (
	"os"
	_ "time/tzdata"

	"daily-challenge-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
