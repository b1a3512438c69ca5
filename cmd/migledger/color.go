package main

import (
	"os"

	"github.com/fatih/color"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed, color.Bold).SprintFunc()
)

// configureColors отключает цвета по флагу или NO_COLOR.
// configureColors disables colors via the flag or NO_COLOR.
func configureColors(disable bool) {
	if disable || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}
