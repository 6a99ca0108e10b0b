package main

import (
	"fmt"
	"os"

	"github.com/credra/credra/cmd/credra-cli"
)

func main() {
	app := credra.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
}
