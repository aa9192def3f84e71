package main

import (
	"os"

	"github.com/CNES/DOI-server-sub001/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
