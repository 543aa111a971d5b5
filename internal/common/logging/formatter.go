package logging

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter prints only the message and any error, prefixed with the level for warnings
// and errors. Other structured fields are dropped; use the text or json formats to keep them.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	message := entry.Message
	if err, ok := entry.Data[log.ErrorKey]; ok {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	switch entry.Level {
	case log.WarnLevel:
		return []byte(fmt.Sprintf("WARN: %s\n", message)), nil
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return []byte(fmt.Sprintf("ERROR: %s\n", message)), nil
	default:
		return []byte(fmt.Sprintf("%s\n", message)), nil
	}
}
