package logging

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLineFormatter(t *testing.T) {
	tests := map[string]struct {
		entry *logrus.Entry
		want  string
	}{
		"info": {
			entry: &logrus.Entry{Level: logrus.InfoLevel, Message: "Burst 1/3 completed"},
			want:  "Burst 1/3 completed\n",
		},
		"warn": {
			entry: &logrus.Entry{Level: logrus.WarnLevel, Message: "consumer info unavailable"},
			want:  "WARN: consumer info unavailable\n",
		},
		"warn with cause": {
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "Error getting pod count",
				Data:    logrus.Fields{logrus.ErrorKey: errors.New("forbidden")},
			},
			want: "WARN: Error getting pod count: forbidden\n",
		},
		"error with cause": {
			entry: &logrus.Entry{
				Level:   logrus.ErrorLevel,
				Message: "publish failed",
				Data:    logrus.Fields{logrus.ErrorKey: errors.New("no responders")},
			},
			want: "ERROR: publish failed: no responders\n",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := (&CommandLineFormatter{}).Format(tc.entry)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestWithStacktrace(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	err := errors.WithMessage(errors.New("root"), "wrapped")

	logger.SetLevel(logrus.InfoLevel)
	entry := WithStacktrace(logrus.NewEntry(logger), err)
	assert.Equal(t, err, entry.Data[logrus.ErrorKey])
	assert.NotContains(t, entry.Data, Stacktrace)

	logger.SetLevel(logrus.DebugLevel)
	entry = WithStacktrace(logrus.NewEntry(logger), err)
	assert.Contains(t, entry.Data, Stacktrace)
}

func TestExtractStack_NoStack(t *testing.T) {
	assert.Nil(t, ExtractStack(assert.AnError))
}

func TestConfigureLogging(t *testing.T) {
	defer ConfigureCliLogging()

	require.NoError(t, ConfigureLogging(FormatJson, "debug"))
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.Error(t, ConfigureLogging("xml", "info"))
	assert.Error(t, ConfigureLogging(FormatText, "loud"))
}
