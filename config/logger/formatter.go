// Package logger implements a custom logger that prefixes log messages with the component name.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NamespaceFormatter is a logrus formatter that adds the 'component' field to a
// log prefix for nicer formatted text output.
type NamespaceFormatter struct {
	Parent logrus.Formatter
}

// Format implements logrus.Formatter
func (f *NamespaceFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	component, exists := entry.Data["component"]
	if exists {
		ns := component.(string)
		entry.Message = fmt.Sprintf("[%-12s] %s", ns, entry.Message)
	}
	return f.Parent.Format(entry)
}
