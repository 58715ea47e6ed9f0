package main

import (
	"os"

	_ "time/tzdata" // business timezones must resolve on minimal images
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
