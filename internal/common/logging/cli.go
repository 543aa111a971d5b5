package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FormatCli  = "cli"
	FormatText = "text"
	FormatJson = "json"
)

// ConfigureCliLogging sets up the global logger for interactive use: messages only, on stdout.
func ConfigureCliLogging() {
	log.SetFormatter(&CommandLineFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// ConfigureLogging replaces the global formatter and level.
// Valid formats are cli, text and json.
func ConfigureLogging(format string, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.WithStack(err)
	}
	switch strings.ToLower(format) {
	case "", FormatCli:
		log.SetFormatter(&CommandLineFormatter{})
	case FormatText:
		log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	case FormatJson:
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format: %s. Valid formats are %s, %s and %s", format, FormatCli, FormatText, FormatJson)
	}
	log.SetLevel(lvl)
	return nil
}
