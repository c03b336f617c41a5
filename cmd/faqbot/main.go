// Package main is the entry point for the FAQ bot service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/faqbot/internal/faqbot"
)

func main() {
	faqbot.NewApp().Run()
}
