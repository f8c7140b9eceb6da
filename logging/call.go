package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// CallEnabled reports whether call logging was switched on by Setup.
func CallEnabled() bool {
	return callLog.Load()
}

// Call logs an invocation of fn with its parameters when call logging is
// enabled. kv is a flat list of name, value pairs.
func Call(prefix, fn string, kv ...any) {
	if !callLog.Load() {
		return
	}
	logrus.StandardLogger().Info(formatCall(prefix, fn, kv))
}

func formatCall(prefix, fn string, kv []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] call: %s", prefix, fn)
	if len(kv) == 0 {
		return b.String()
	}

	b.WriteString(" with params:")
	for i := 0; i < len(kv); i += 2 {
		var v any = "<missing>"
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		fmt.Fprintf(&b, "\n\t\t--> %v=%+v", kv[i], v)
	}
	return b.String()
}

// Fields converts kv pairs into logrus fields.
func Fields(kv ...any) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
