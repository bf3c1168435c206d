package main

import (
	"os"

	"github.com/pierrevano/whatson-api-sub001/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
