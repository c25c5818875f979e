package main

import (
	_ "time/tzdata"

	"github.com/trouver-une-fresque/fresk-scraper/internal/cli"
)

func main() {
	cli.Execute()
}
