package main

import (
	"os"

	"github.com/abhisek/lessonpath/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
