package mocks

import (
	mock "github.com/stretchr/testify/mock"

	modules "esmod/pkg/modules"
)

// Sink is a mock type for the Sink type
type Sink struct {
	mock.Mock
}

// Report provides a mock function with given fields: d
func (_m *Sink) Report(d modules.Diagnostic) {
	_m.Called(d)
}

// NewSink creates a new instance of Sink. It also registers a testing
// interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewSink(t interface {
	mock.TestingT
	Cleanup(func())
}) *Sink {
	m := &Sink{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
