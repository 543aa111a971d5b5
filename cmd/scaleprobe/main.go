package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/memebattle/scaleprobe/cmd/scaleprobe/cmd"
	"github.com/memebattle/scaleprobe/internal/common/logging"
)

// Config is handled by cmd/params.go
func main() {
	logging.ConfigureCliLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
