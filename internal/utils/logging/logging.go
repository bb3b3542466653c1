// Package logging constructs logrus entries for injection into components.
// Loggers are passed by reference, never read from a package global
package logging

import "github.com/sirupsen/logrus"

type Fields = logrus.Fields

// New builds a fresh logger entry at the given verbosity
func New(verbose bool) *logrus.Entry {
	l := logrus.New()

	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	return logrus.NewEntry(l)
}

// Component derives a child entry tagged with the owning component
func Component(log *logrus.Entry, name string) *logrus.Entry {
	return log.WithField("component", name)
}
