package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nazarhussain/contact-gate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		var rejected *cli.RejectedError
		if !errors.As(err, &rejected) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
