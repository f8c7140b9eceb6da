package logging

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	colorGrey    = "\x1b[38;20m"
	colorBlue    = "\x1b[34;20m"
	colorYellow  = "\x1b[33;20m"
	colorRed     = "\x1b[31;20m"
	colorBoldRed = "\x1b[31;1m"
	colorReset   = "\x1b[0m"
)

// ColoredFormatter prints "LEVEL:    message key=value" lines with the
// level name colored by severity.
type ColoredFormatter struct {
	DisableColors bool
}

func levelColor(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return colorGrey
	case logrus.InfoLevel:
		return colorBlue
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel:
		return colorRed
	default:
		return colorBoldRed
	}
}

func (f *ColoredFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = new(bytes.Buffer)
	}

	level := fmt.Sprintf("%-10s", strings.ToUpper(entry.Level.String())+":")
	if f.DisableColors {
		b.WriteString(level)
	} else {
		b.WriteString(levelColor(entry.Level))
		b.WriteString(level)
		b.WriteString(colorReset)
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
