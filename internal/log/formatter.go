package log

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	defaultPattern    = "%time [%level] %msg %field%n"
	defaultTimeLayout = "2006-01-02 15:04:05.000"
)

type formatter struct {
	pattern string
	time    string
}

func newFormatter(pattern, timeLayout string) *formatter {
	if pattern == "" {
		pattern = defaultPattern
	}
	if timeLayout == "" {
		timeLayout = defaultTimeLayout
	}
	return &formatter{pattern: pattern, time: timeLayout}
}

// Format supports a log line pattern with %time, %level, %component, %field, %msg and %n.
// %component pulls the component field out of %field.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	skip := ""
	if strings.Contains(output, "%component") {
		skip = "component"
		component, _ := entry.Data["component"].(string)
		output = strings.Replace(output, "%component", component, 1)
	}
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", strings.ToUpper(entry.Level.String()), 1)
	output = strings.Replace(output, "%field", buildFields(entry, skip), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.ReplaceAll(output, "%n", "\n")
	return []byte(output), nil
}

// buildFields renders fields as key=value in key order.
func buildFields(entry *logrus.Entry, skip string) string {
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != skip {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		val := entry.Data[key]
		stringVal, ok := val.(string)
		if !ok {
			stringVal = fmt.Sprint(val)
		}
		fields = append(fields, key+"="+stringVal)
	}
	return strings.Join(fields, " ")
}
