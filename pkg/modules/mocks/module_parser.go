package mocks

import (
	mock "github.com/stretchr/testify/mock"

	parser "esmod/pkg/parser"
	source "esmod/pkg/source"
)

// ModuleParser is a mock type for the ModuleParser type
type ModuleParser struct {
	mock.Mock
}

// ParseModule provides a mock function with given fields: src
func (_m *ModuleParser) ParseModule(src *source.SourceFile) (*parser.Program, error) {
	ret := _m.Called(src)

	var r0 *parser.Program
	if rf, ok := ret.Get(0).(func(*source.SourceFile) *parser.Program); ok {
		r0 = rf(src)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*parser.Program)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(*source.SourceFile) error); ok {
		r1 = rf(src)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewModuleParser creates a new instance of ModuleParser. It also registers
// a testing interface on the mock and a cleanup function to assert the
// mocks expectations.
func NewModuleParser(t interface {
	mock.TestingT
	Cleanup(func())
}) *ModuleParser {
	m := &ModuleParser{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
