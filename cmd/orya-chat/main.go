package main

import (
	"fmt"
	"os"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
