package mocks

import (
	mock "github.com/stretchr/testify/mock"

	modules "esmod/pkg/modules"
	source "esmod/pkg/source"
)

// FunctionCompiler is a mock type for the FunctionCompiler type
type FunctionCompiler struct {
	mock.Mock
}

// CompileFunction provides a mock function with given fields: src
func (_m *FunctionCompiler) CompileFunction(src *source.SourceFile) (modules.Callable, error) {
	ret := _m.Called(src)

	var r0 modules.Callable
	if rf, ok := ret.Get(0).(func(*source.SourceFile) modules.Callable); ok {
		r0 = rf(src)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(modules.Callable)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(*source.SourceFile) error); ok {
		r1 = rf(src)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewFunctionCompiler creates a new instance of FunctionCompiler. It also
// registers a testing interface on the mock and a cleanup function to
// assert the mocks expectations.
func NewFunctionCompiler(t interface {
	mock.TestingT
	Cleanup(func())
}) *FunctionCompiler {
	m := &FunctionCompiler{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
