package log

import "github.com/sirupsen/logrus"

// Logrus adapts a *logrus.Logger to the driver's Logger interface
// (SPEC_FULL §3.1, grounded on nabbar-golib/logger which wraps logrus the
// same way). Use NewLogrus(nil) for a sensible default (text formatter,
// InfoLevel).
type Logrus struct {
	l *logrus.Logger
}

func NewLogrus(l *logrus.Logger) *Logrus {
	if l == nil {
		l = logrus.New()
		l.SetLevel(logrus.InfoLevel)
	}
	return &Logrus{l: l}
}

func (a *Logrus) fields(name, id string) logrus.Fields {
	return logrus.Fields{"component": name, "id": id}
}

func (a *Logrus) Error(name, id string, err error) {
	a.l.WithFields(a.fields(name, id)).Error(err)
}

func (a *Logrus) Warnf(name, id, format string, args ...any) {
	a.l.WithFields(a.fields(name, id)).Warnf(format, args...)
}

func (a *Logrus) Infof(name, id, format string, args ...any) {
	a.l.WithFields(a.fields(name, id)).Infof(format, args...)
}

func (a *Logrus) Debugf(name, id, format string, args ...any) {
	a.l.WithFields(a.fields(name, id)).Debugf(format, args...)
}
