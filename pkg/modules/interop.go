package modules

import (
	"esmod/pkg/compiler"
	"esmod/pkg/source"
)

const (
	// SyntheticDefaultExportSource is analyzed in place of a module that
	// declares no imports or exports.
	SyntheticDefaultExportSource = "export default undefined;"

	// CommonJSModuleFunction is the record property holding the compiled
	// CommonJS wrapper of such a module.
	CommonJSModuleFunction = "CommonJSModuleFunction"

	CommonJSFunctionPrologue = "(function (exports, require, module, __filename, __dirname) {\n"
	CommonJSFunctionEpilogue = "\n})"
)

// WrapCommonJS wraps the text of src in the CommonJS function prologue and
// epilogue. The wrapper keeps the name and URL of src so compiled code
// reports the original module as its origin.
func WrapCommonJS(src *source.SourceFile) *source.SourceFile {
	if src == nil {
		return source.NewScriptSource("<unknown>", "", CommonJSFunctionPrologue+CommonJSFunctionEpilogue)
	}
	return source.NewScriptSource(src.Name, src.URL, CommonJSFunctionPrologue+src.Content+CommonJSFunctionEpilogue)
}

type functionCompiler struct {
	c *compiler.Compiler
}

// NewFunctionCompiler adapts c to the FunctionCompiler interface.
func NewFunctionCompiler(c *compiler.Compiler) FunctionCompiler {
	return functionCompiler{c: c}
}

func (fc functionCompiler) CompileFunction(src *source.SourceFile) (Callable, error) {
	fn, err := fc.c.CompileFunction(src)
	if err != nil {
		return nil, err
	}
	return fn, nil
}
