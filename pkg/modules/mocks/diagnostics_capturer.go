package mocks

import (
	"testing"

	mock "github.com/stretchr/testify/mock"

	modules "esmod/pkg/modules"
)

type DiagnosticsCapturer struct {
	Sink *Sink
	Got  []modules.Diagnostic
}

func (c *DiagnosticsCapturer) capture(d modules.Diagnostic) bool {
	c.Got = append(c.Got, d)
	return true
}

func NewDiagnosticsCapturer(t *testing.T) *DiagnosticsCapturer {
	c := &DiagnosticsCapturer{
		Sink: NewSink(t),
	}

	c.Sink.
		On("Report", mock.MatchedBy(c.capture)).
		Maybe().
		Return()

	return c
}
