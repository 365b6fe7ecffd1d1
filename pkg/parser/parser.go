package parser

import (
	"fmt"

	"esmod/pkg/errors"
	"esmod/pkg/lexer"
	"esmod/pkg/source"
)

// Mode selects the goal symbol the parser accepts.
type Mode int

const (
	ModuleMode Mode = iota // import/export declarations allowed at top level
	ScriptMode             // import/export declarations are syntax errors
)

// Parser parses the top level of a program. Statements that declare
// nothing at module scope are skipped with bracket balancing and automatic
// semicolon insertion and kept as OpaqueStatement.
type Parser struct {
	l      *lexer.Lexer
	source *source.SourceFile
	mode   Mode
	errors []errors.SourceError

	beforePrev lexer.TokenType
	prevToken  lexer.Token
	curToken   lexer.Token
	peekToken  lexer.Token

	// Scanner states before curToken and peekToken, for rescanning.
	curState  lexer.State
	peekState lexer.State

	// Declaration analysis
	vars           *VariableEnvironment
	lexicals       *VariableEnvironment
	moduleScope    *ModuleScopeData
	pendingExports []pendingExport
}

// pendingExport is a local export resolved once every top-level
// declaration has been seen, since `export { x }` may precede `let x`.
type pendingExport struct {
	local    string
	exported string
	token    lexer.Token
}

// NewParser creates a parser reading tokens from l.
func NewParser(l *lexer.Lexer, src *source.SourceFile, mode Mode) *Parser {
	p := &Parser{
		l:           l,
		source:      src,
		mode:        mode,
		vars:        NewVariableEnvironment(),
		lexicals:    NewVariableEnvironment(),
		moduleScope: NewModuleScopeData(),
	}
	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()
	return p
}

// ParseModule parses src as module code. The returned error is an
// errors.List of positioned syntax errors.
func ParseModule(src *source.SourceFile) (*Program, error) {
	p := NewParser(lexer.NewLexer(src.Content), src, ModuleMode)
	program, errs := p.ParseProgram()
	if len(errs) > 0 {
		return nil, errors.List(errs)
	}
	return program, nil
}

// ParseScript parses src as script code.
func ParseScript(src *source.SourceFile) (*Program, error) {
	p := NewParser(lexer.NewLexer(src.Content), src, ScriptMode)
	program, errs := p.ParseProgram()
	if len(errs) > 0 {
		return nil, errors.List(errs)
	}
	return program, nil
}

// ParseFunctionProgram parses src as a program consisting of exactly one
// parenthesized function expression, e.g. `(function (a, b) { ... })`.
func ParseFunctionProgram(src *source.SourceFile) (*FunctionLiteral, error) {
	p := NewParser(lexer.NewLexer(src.Content), src, ScriptMode)
	fn := p.parseFunctionProgram()
	if len(p.errors) > 0 {
		return nil, errors.List(p.errors)
	}
	return fn, nil
}

// Errors returns the errors collected so far.
func (p *Parser) Errors() []errors.SourceError {
	return p.errors
}

// ParseProgram parses statements until EOF and runs declaration analysis.
func (p *Parser) ParseProgram() (*Program, []errors.SourceError) {
	program := &Program{Source: p.source}
	program.Statements = p.parseStatementList(false)
	if !p.failed() {
		p.resolveExports()
	}
	program.VarDeclarations = p.vars
	program.LexicalVariables = p.lexicals
	program.ModuleScope = p.moduleScope
	return program, p.errors
}

// --- Token helpers ---

func (p *Parser) nextToken() {
	p.beforePrev = p.prevToken.Type
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.curState = p.peekState
	p.peekState = p.l.Save()
	p.peekToken = p.l.NextToken()
	if p.curToken.Type == lexer.ILLEGAL {
		p.addError(p.curToken, p.curToken.Literal)
	}
}

// endDeclarationBody is called with curToken just past the '}' closing a
// function or class declaration body. A '/' there starts a statement, so
// it is scanned again as a regular expression literal.
func (p *Parser) endDeclarationBody() {
	if !p.curTokenIs(lexer.SLASH) && !p.curTokenIs("/=") {
		return
	}
	p.l.Restore(p.curState)
	p.l.StartStatement()
	p.curToken = p.l.NextToken()
	p.peekState = p.l.Save()
	p.peekToken = p.l.NextToken()
	if p.curToken.Type == lexer.ILLEGAL {
		p.addError(p.curToken, p.curToken.Literal)
	}
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

// curIsContextual reports whether the current token is the identifier word,
// such as "from", "as" or "async".
func (p *Parser) curIsContextual(word string) bool {
	return p.curToken.Type == lexer.IDENT && p.curToken.Literal == word
}

func (p *Parser) failed() bool { return len(p.errors) > 0 }

// addError records a syntax error at tok. Only the first error is kept;
// parsing stops once an error has been seen.
func (p *Parser) addError(tok lexer.Token, msg string) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, &errors.SyntaxError{
		Position: errors.Position{
			Line:     tok.Line,
			Column:   tok.Column,
			StartPos: tok.StartPos,
			EndPos:   tok.EndPos,
			Source:   p.source,
		},
		Msg: msg,
	})
}

func (p *Parser) unexpected(tok lexer.Token) {
	if tok.Type == lexer.EOF {
		p.addError(tok, "unexpected end of input")
		return
	}
	p.addError(tok, fmt.Sprintf("unexpected token '%s'", tokenText(tok)))
}

func tokenText(tok lexer.Token) string {
	if tok.Type == lexer.STRING {
		return fmt.Sprintf("%q", tok.Literal)
	}
	return tok.Literal
}

// expectCur checks the current token type and advances past it.
func (p *Parser) expectCur(t lexer.TokenType) bool {
	if !p.curTokenIs(t) {
		p.addError(p.curToken, fmt.Sprintf("expected '%s', got '%s'", t, tokenText(p.curToken)))
		return false
	}
	p.nextToken()
	return true
}

// consumeSemicolon ends a statement, applying automatic semicolon insertion.
func (p *Parser) consumeSemicolon() {
	switch {
	case p.curTokenIs(lexer.SEMICOLON):
		p.nextToken()
	case p.curTokenIs(lexer.EOF), p.curTokenIs(lexer.RBRACE), p.curToken.NewlineBefore:
	default:
		p.unexpected(p.curToken)
	}
}

// --- Statements ---

func (p *Parser) parseStatementList(inBody bool) []Statement {
	var stmts []Statement
	for !p.failed() {
		switch p.curToken.Type {
		case lexer.EOF:
			if inBody {
				p.unexpected(p.curToken)
			}
			return stmts
		case lexer.RBRACE:
			if !inBody {
				p.unexpected(p.curToken)
			}
			return stmts
		}
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func (p *Parser) parseStatement() Statement {
	switch p.curToken.Type {
	case lexer.SEMICOLON:
		p.nextToken()
		return nil
	case lexer.IMPORT:
		if p.peekTokenIs(lexer.LPAREN) || p.peekTokenIs(lexer.DOT) {
			return p.parseOpaqueStatement()
		}
		if p.mode != ModuleMode {
			p.addError(p.curToken, "import declarations may only appear at top level of a module")
			return nil
		}
		return p.parseImportDeclaration()
	case lexer.EXPORT:
		if p.mode != ModuleMode {
			p.addError(p.curToken, "export declarations may only appear at top level of a module")
			return nil
		}
		return p.parseExportDeclaration()
	case lexer.VAR, lexer.LET, lexer.CONST:
		return p.parseVariableStatement()
	case lexer.FUNCTION:
		return p.parseFunctionStatement()
	case lexer.CLASS:
		return p.parseClassStatement()
	case lexer.IDENT:
		if p.isAsyncFunction() {
			return p.parseFunctionStatement()
		}
	}
	return p.parseOpaqueStatement()
}

func (p *Parser) isAsyncFunction() bool {
	return p.curIsContextual("async") && p.peekTokenIs(lexer.FUNCTION) && !p.peekToken.NewlineBefore
}

func (p *Parser) parseOpaqueStatement() Statement {
	start := p.curToken
	p.skipStatement()
	if p.failed() {
		return nil
	}
	end := p.prevToken.EndPos
	if end < start.StartPos {
		end = start.StartPos
	}
	return &OpaqueStatement{Token: start, Text: p.source.Content[start.StartPos:end]}
}

func (p *Parser) parseVariableStatement() Statement {
	decl := p.parseVariableDeclaration()
	if decl == nil {
		return nil
	}
	p.consumeSemicolon()
	return decl
}

// parseVariableDeclaration parses var/let/const declarators and declares
// every bound name. The terminating semicolon is left to the caller.
func (p *Parser) parseVariableDeclaration() *VariableDeclaration {
	decl := &VariableDeclaration{Token: p.curToken}
	p.nextToken()
	for !p.failed() {
		target := p.curToken
		names := p.parseBindingTarget()
		if p.failed() {
			return nil
		}
		for _, name := range names {
			switch decl.Token.Type {
			case lexer.VAR:
				p.declareVar(name)
			case lexer.LET:
				p.declareLexical(name, LetFlag)
			default:
				p.declareLexical(name, ConstFlag)
			}
		}
		decl.Names = append(decl.Names, names...)

		if p.curTokenIs(lexer.ASSIGN) {
			p.nextToken()
			p.skipInitializer()
		} else if decl.Token.Type == lexer.CONST {
			p.addError(target, "missing initializer in const declaration")
		} else if target.Type != lexer.IDENT {
			p.addError(target, "missing initializer in destructuring declaration")
		}

		if !p.curTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}
	if p.failed() {
		return nil
	}
	return decl
}

func (p *Parser) skipInitializer() {
	if isExpressionEnd(p.curToken.Type) {
		p.addError(p.curToken, "expected expression")
		return
	}
	p.skipExpression(true)
}

func isExpressionEnd(t lexer.TokenType) bool {
	switch t {
	case lexer.EOF, lexer.SEMICOLON, lexer.COMMA, lexer.RPAREN, lexer.RBRACKET, lexer.RBRACE:
		return true
	}
	return false
}

// parseBindingTarget parses an identifier or destructuring pattern and
// returns the identifiers it binds, in source order.
func (p *Parser) parseBindingTarget() []*Identifier {
	switch p.curToken.Type {
	case lexer.IDENT:
		id := &Identifier{Token: p.curToken, Value: p.curToken.Literal}
		p.nextToken()
		return []*Identifier{id}
	case lexer.LBRACE:
		return p.parseObjectPattern()
	case lexer.LBRACKET:
		return p.parseArrayPattern()
	}
	p.addError(p.curToken, fmt.Sprintf("expected identifier or destructuring pattern, got '%s'", tokenText(p.curToken)))
	return nil
}

func (p *Parser) parseObjectPattern() []*Identifier {
	var names []*Identifier
	p.nextToken() // '{'
	for !p.failed() && !p.curTokenIs(lexer.RBRACE) {
		if p.curTokenIs(lexer.SPREAD) {
			p.nextToken()
			if !p.curTokenIs(lexer.IDENT) {
				p.unexpected(p.curToken)
				return nil
			}
			names = append(names, &Identifier{Token: p.curToken, Value: p.curToken.Literal})
			p.nextToken()
		} else {
			key := p.curToken
			switch {
			case key.Type == lexer.LBRACKET:
				p.skipBalanced()
				if !p.curTokenIs(lexer.COLON) {
					p.unexpected(p.curToken)
					return nil
				}
			case lexer.IsIdentifierName(key) || key.Type == lexer.STRING || key.Type == lexer.NUMBER:
				p.nextToken()
			default:
				p.unexpected(key)
				return nil
			}

			if p.curTokenIs(lexer.COLON) {
				p.nextToken()
				names = append(names, p.parseBindingTarget()...)
			} else if key.Type == lexer.IDENT {
				names = append(names, &Identifier{Token: key, Value: key.Literal})
			} else {
				p.unexpected(p.curToken)
				return nil
			}
			if p.curTokenIs(lexer.ASSIGN) {
				p.nextToken()
				p.skipInitializer()
			}
		}
		if p.failed() {
			return nil
		}
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
		} else if !p.curTokenIs(lexer.RBRACE) {
			p.unexpected(p.curToken)
			return nil
		}
	}
	if !p.expectCur(lexer.RBRACE) {
		return nil
	}
	return names
}

func (p *Parser) parseArrayPattern() []*Identifier {
	var names []*Identifier
	p.nextToken() // '['
	for !p.failed() && !p.curTokenIs(lexer.RBRACKET) {
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if p.curTokenIs(lexer.SPREAD) {
			p.nextToken()
		}
		names = append(names, p.parseBindingTarget()...)
		if p.curTokenIs(lexer.ASSIGN) {
			p.nextToken()
			p.skipInitializer()
		}
		if p.failed() {
			return nil
		}
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
		} else if !p.curTokenIs(lexer.RBRACKET) {
			p.unexpected(p.curToken)
			return nil
		}
	}
	if !p.expectCur(lexer.RBRACKET) {
		return nil
	}
	return names
}

func (p *Parser) parseFunctionStatement() Statement {
	decl := p.parseFunctionDeclaration(false)
	if decl == nil {
		return nil
	}
	p.declareFunction(decl.Name)
	return decl
}

// parseFunctionDeclaration parses [async] function[*] [name](params) {body}.
// The name may be omitted only when allowAnonymous is set.
func (p *Parser) parseFunctionDeclaration(allowAnonymous bool) *FunctionDeclaration {
	decl := &FunctionDeclaration{Token: p.curToken}
	if p.curIsContextual("async") {
		decl.IsAsync = true
		p.nextToken()
	}
	if !p.expectCur(lexer.FUNCTION) {
		return nil
	}
	if p.curTokenIs(lexer.ASTERISK) {
		decl.IsGenerator = true
		p.nextToken()
	}
	if p.curTokenIs(lexer.IDENT) {
		decl.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
		p.nextToken()
	} else if !allowAnonymous {
		p.addError(p.curToken, "function name expected")
		return nil
	}
	decl.Params = p.parseParams()
	if p.failed() {
		return nil
	}
	if !p.curTokenIs(lexer.LBRACE) {
		p.unexpected(p.curToken)
		return nil
	}
	decl.BodyStart = p.curToken.StartPos
	p.skipBalanced()
	if p.failed() {
		return nil
	}
	decl.BodyEnd = p.prevToken.EndPos
	p.endDeclarationBody()
	return decl
}

// parseParams parses a parenthesized formal parameter list and returns the
// bound names.
func (p *Parser) parseParams() []string {
	if !p.expectCur(lexer.LPAREN) {
		return nil
	}
	var params []string
	for !p.failed() && !p.curTokenIs(lexer.RPAREN) {
		if p.curTokenIs(lexer.SPREAD) {
			p.nextToken()
		}
		for _, id := range p.parseBindingTarget() {
			params = append(params, id.Value)
		}
		if p.curTokenIs(lexer.ASSIGN) {
			p.nextToken()
			p.skipInitializer()
		}
		if p.failed() {
			return nil
		}
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
		} else if !p.curTokenIs(lexer.RPAREN) {
			p.unexpected(p.curToken)
			return nil
		}
	}
	if !p.expectCur(lexer.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseClassStatement() Statement {
	decl := p.parseClassDeclaration(false)
	if decl == nil {
		return nil
	}
	p.declareLexical(decl.Name, ClassFlag)
	return decl
}

// parseClassDeclaration parses class [name] [extends expr] {body}.
func (p *Parser) parseClassDeclaration(allowAnonymous bool) *ClassDeclaration {
	decl := &ClassDeclaration{Token: p.curToken}
	p.nextToken()
	if p.curTokenIs(lexer.IDENT) {
		decl.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
		p.nextToken()
	} else if !allowAnonymous {
		p.addError(p.curToken, "class name expected")
		return nil
	}
	if p.curToken.Type == lexer.KEYWORD && p.curToken.Literal == "extends" {
		p.nextToken()
		var stack []lexer.TokenType
		for !p.failed() {
			if len(stack) == 0 && p.curTokenIs(lexer.LBRACE) {
				break
			}
			if p.curTokenIs(lexer.EOF) {
				p.unexpected(p.curToken)
				return nil
			}
			if !p.consumeBracketed(&stack) {
				return nil
			}
		}
	}
	if !p.curTokenIs(lexer.LBRACE) {
		p.unexpected(p.curToken)
		return nil
	}
	p.skipBalanced()
	if p.failed() {
		return nil
	}
	p.endDeclarationBody()
	return decl
}

// --- Imports ---

// parseImportDeclaration parses every static import form:
// import "module"
// import defaultName from "module"
// import * as name from "module"
// import { a, b as c, "str" as d, default as e } from "module"
// import defaultName, { a } from "module"
// import defaultName, * as name from "module"
// Any form may carry import attributes: with { type: "json" }
func (p *Parser) parseImportDeclaration() Statement {
	stmt := &ImportDeclaration{Token: p.curToken}
	p.nextToken()

	if p.curTokenIs(lexer.STRING) {
		stmt.Source = &StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
		p.nextToken()
		p.parseOptionalAttributes(stmt)
		p.consumeSemicolon()
		if p.failed() {
			return nil
		}
		return stmt
	}

	if p.curTokenIs(lexer.IDENT) && !(p.curIsContextual("from") && p.peekTokenIs(lexer.STRING)) {
		stmt.Specifiers = append(stmt.Specifiers, &ImportDefaultSpecifier{
			Token: p.curToken,
			Local: &Identifier{Token: p.curToken, Value: p.curToken.Literal},
		})
		p.nextToken()
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
			if !p.curTokenIs(lexer.ASTERISK) && !p.curTokenIs(lexer.LBRACE) {
				p.unexpected(p.curToken)
				return nil
			}
		}
	}

	switch p.curToken.Type {
	case lexer.ASTERISK:
		spec := p.parseImportNamespaceSpecifier()
		if spec == nil {
			return nil
		}
		stmt.Specifiers = append(stmt.Specifiers, spec)
	case lexer.LBRACE:
		specs, ok := p.parseImportSpecifierList()
		if !ok {
			return nil
		}
		stmt.Specifiers = append(stmt.Specifiers, specs...)
	}

	if len(stmt.Specifiers) == 0 {
		p.unexpected(p.curToken)
		return nil
	}
	source := p.parseFromClause()
	if source == nil {
		return nil
	}
	stmt.Source = source
	p.parseOptionalAttributes(stmt)
	p.consumeSemicolon()
	if p.failed() {
		return nil
	}

	for _, spec := range stmt.Specifiers {
		flags := ImportedFlag | ConstFlag
		if _, ok := spec.(*ImportNamespaceSpecifier); ok {
			flags |= ImportedNamespaceFlag
		}
		p.declareImport(spec, flags)
	}
	if p.failed() {
		return nil
	}
	return stmt
}

func (p *Parser) parseImportNamespaceSpecifier() ImportSpecifier {
	tok := p.curToken
	p.nextToken() // '*'
	if !p.curIsContextual("as") {
		p.addError(p.curToken, "expected 'as' after '*' in import declaration")
		return nil
	}
	p.nextToken()
	if !p.curTokenIs(lexer.IDENT) {
		p.unexpected(p.curToken)
		return nil
	}
	spec := &ImportNamespaceSpecifier{
		Token: tok,
		Local: &Identifier{Token: p.curToken, Value: p.curToken.Literal},
	}
	p.nextToken()
	return spec
}

// parseImportSpecifierList parses { name1, name2 as alias, "str" as alias }.
func (p *Parser) parseImportSpecifierList() ([]ImportSpecifier, bool) {
	var specs []ImportSpecifier
	p.nextToken() // '{'
	for !p.failed() && !p.curTokenIs(lexer.RBRACE) {
		tok := p.curToken
		imported := p.parseModuleExportName()
		if imported == nil {
			return nil, false
		}
		var local *Identifier
		if p.curIsContextual("as") {
			p.nextToken()
			if !p.curTokenIs(lexer.IDENT) {
				p.unexpected(p.curToken)
				return nil, false
			}
			local = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
			p.nextToken()
		} else {
			if imported.IsString {
				p.addError(tok, "string-named imports must use 'as' to provide a local name")
				return nil, false
			}
			if imported.Token.Type != lexer.IDENT {
				p.addError(tok, fmt.Sprintf("unexpected reserved word '%s' as import binding", imported.Value))
				return nil, false
			}
			local = &Identifier{Token: tok, Value: imported.Value}
		}
		specs = append(specs, &ImportNamedSpecifier{Token: tok, Imported: imported, Local: local})

		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
		} else if !p.curTokenIs(lexer.RBRACE) {
			p.unexpected(p.curToken)
			return nil, false
		}
	}
	if !p.expectCur(lexer.RBRACE) {
		return nil, false
	}
	return specs, true
}

// parseModuleExportName parses an IdentifierName or a string literal.
func (p *Parser) parseModuleExportName() *ModuleExportName {
	tok := p.curToken
	switch {
	case tok.Type == lexer.STRING:
		p.nextToken()
		return &ModuleExportName{Token: tok, Value: tok.Literal, IsString: true}
	case lexer.IsIdentifierName(tok):
		p.nextToken()
		return &ModuleExportName{Token: tok, Value: tok.Literal}
	}
	p.unexpected(tok)
	return nil
}

// parseFromClause parses `from "module"` and returns the module request.
func (p *Parser) parseFromClause() *StringLiteral {
	if !p.curIsContextual("from") {
		p.addError(p.curToken, fmt.Sprintf("expected 'from', got '%s'", tokenText(p.curToken)))
		return nil
	}
	p.nextToken()
	if !p.curTokenIs(lexer.STRING) {
		p.addError(p.curToken, "expected a module specifier string after 'from'")
		return nil
	}
	lit := &StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	p.nextToken()
	return lit
}

type attributed interface {
	setAttributes(map[string]string)
}

func (d *ImportDeclaration) setAttributes(a map[string]string)      { d.Attributes = a }
func (d *ExportNamedDeclaration) setAttributes(a map[string]string) { d.Attributes = a }
func (d *ExportAllDeclaration) setAttributes(a map[string]string)   { d.Attributes = a }

// parseOptionalAttributes parses `with { key: "value", ... }`, also
// accepting the older `assert` keyword on the same line.
func (p *Parser) parseOptionalAttributes(target attributed) {
	isWith := p.curToken.Type == lexer.KEYWORD && p.curToken.Literal == "with"
	if !isWith && !(p.curIsContextual("assert") && !p.curToken.NewlineBefore) {
		return
	}
	p.nextToken()
	if !p.expectCur(lexer.LBRACE) {
		return
	}
	attributes := make(map[string]string)
	for !p.failed() && !p.curTokenIs(lexer.RBRACE) {
		var key string
		switch {
		case p.curTokenIs(lexer.STRING), lexer.IsIdentifierName(p.curToken):
			key = p.curToken.Literal
			p.nextToken()
		default:
			p.unexpected(p.curToken)
			return
		}
		if !p.expectCur(lexer.COLON) {
			return
		}
		if !p.curTokenIs(lexer.STRING) {
			p.addError(p.curToken, "import attribute value must be a string literal")
			return
		}
		if _, dup := attributes[key]; dup {
			p.addError(p.curToken, fmt.Sprintf("duplicate import attribute '%s'", key))
			return
		}
		attributes[key] = p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
		} else if !p.curTokenIs(lexer.RBRACE) {
			p.unexpected(p.curToken)
			return
		}
	}
	if !p.expectCur(lexer.RBRACE) {
		return
	}
	target.setAttributes(attributes)
}

// --- Exports ---

// parseExportDeclaration parses the export statement forms:
// export var/let/const/function/class ...
// export { name1, name2 as alias };
// export { name1 } from "module";
// export default expression;
// export * from "module";
// export * as name from "module";
func (p *Parser) parseExportDeclaration() Statement {
	exportToken := p.curToken
	p.nextToken()

	switch p.curToken.Type {
	case lexer.DEFAULT:
		return p.parseExportDefaultDeclaration(exportToken)
	case lexer.ASTERISK:
		return p.parseExportAllDeclaration(exportToken)
	case lexer.LBRACE:
		return p.parseExportNamedDeclarationWithSpecifiers(exportToken)
	case lexer.VAR, lexer.LET, lexer.CONST:
		decl := p.parseVariableDeclaration()
		if decl == nil {
			return nil
		}
		p.consumeSemicolon()
		for _, name := range decl.Names {
			p.exportLocal(name.Value, name.Value, name.Token)
		}
		return p.finishExport(&ExportNamedDeclaration{Token: exportToken, Declaration: decl})
	case lexer.FUNCTION:
		return p.parseExportFunction(exportToken)
	case lexer.CLASS:
		decl := p.parseClassDeclaration(false)
		if decl == nil {
			return nil
		}
		p.declareLexical(decl.Name, ClassFlag)
		p.exportLocal(decl.Name.Value, decl.Name.Value, decl.Name.Token)
		return p.finishExport(&ExportNamedDeclaration{Token: exportToken, Declaration: decl})
	case lexer.IDENT:
		if p.isAsyncFunction() {
			return p.parseExportFunction(exportToken)
		}
	}
	p.unexpected(p.curToken)
	return nil
}

func (p *Parser) parseExportFunction(exportToken lexer.Token) Statement {
	decl := p.parseFunctionDeclaration(false)
	if decl == nil {
		return nil
	}
	p.declareFunction(decl.Name)
	p.exportLocal(decl.Name.Value, decl.Name.Value, decl.Name.Token)
	return p.finishExport(&ExportNamedDeclaration{Token: exportToken, Declaration: decl})
}

func (p *Parser) finishExport(stmt Statement) Statement {
	if p.failed() {
		return nil
	}
	return stmt
}

// parseExportDefaultDeclaration parses export default <function|class|expression>.
func (p *Parser) parseExportDefaultDeclaration(exportToken lexer.Token) Statement {
	defaultToken := p.curToken
	p.reserveExportName("default", defaultToken)
	p.nextToken()
	stmt := &ExportDefaultDeclaration{Token: exportToken, LocalName: DefaultBindingName}

	switch {
	case p.curTokenIs(lexer.FUNCTION) || p.isAsyncFunction():
		decl := p.parseFunctionDeclaration(true)
		if decl == nil {
			return nil
		}
		stmt.Declaration = decl
		if decl.Name != nil {
			stmt.LocalName = decl.Name.Value
			p.declareFunction(decl.Name)
		} else {
			p.declareFunction(&Identifier{Token: decl.Token, Value: DefaultBindingName})
		}
	case p.curTokenIs(lexer.CLASS):
		decl := p.parseClassDeclaration(true)
		if decl == nil {
			return nil
		}
		stmt.Declaration = decl
		name := &Identifier{Token: decl.Token, Value: DefaultBindingName}
		if decl.Name != nil {
			name = decl.Name
			stmt.LocalName = decl.Name.Value
		}
		p.declareLexical(name, ClassFlag)
	default:
		start := p.curToken
		if isExpressionEnd(start.Type) {
			p.addError(start, "expected expression after 'export default'")
			return nil
		}
		p.skipExpression(false)
		if p.failed() {
			return nil
		}
		stmt.Expression = p.source.Content[start.StartPos:p.prevToken.EndPos]
		p.declareLexical(&Identifier{Token: start, Value: DefaultBindingName}, ConstFlag)
		p.consumeSemicolon()
	}

	p.queueExport(stmt.LocalName, "default", defaultToken)
	return p.finishExport(stmt)
}

// parseExportAllDeclaration parses export * from "module" and
// export * as name from "module".
func (p *Parser) parseExportAllDeclaration(exportToken lexer.Token) Statement {
	stmt := &ExportAllDeclaration{Token: exportToken}
	p.nextToken() // '*'
	if p.curIsContextual("as") {
		p.nextToken()
		stmt.Exported = p.parseModuleExportName()
		if stmt.Exported == nil {
			return nil
		}
		p.reserveExportName(stmt.Exported.Value, stmt.Exported.Token)
	}
	stmt.Source = p.parseFromClause()
	if stmt.Source == nil {
		return nil
	}
	p.parseOptionalAttributes(stmt)
	p.consumeSemicolon()
	return p.finishExport(stmt)
}

// parseExportNamedDeclarationWithSpecifiers parses export { a, b as c } [from "module"].
func (p *Parser) parseExportNamedDeclarationWithSpecifiers(exportToken lexer.Token) Statement {
	stmt := &ExportNamedDeclaration{Token: exportToken}
	p.nextToken() // '{'
	for !p.failed() && !p.curTokenIs(lexer.RBRACE) {
		tok := p.curToken
		local := p.parseModuleExportName()
		if local == nil {
			return nil
		}
		exported := local
		if p.curIsContextual("as") {
			p.nextToken()
			exported = p.parseModuleExportName()
			if exported == nil {
				return nil
			}
		}
		stmt.Specifiers = append(stmt.Specifiers, &ExportSpecifier{Token: tok, Local: local, Exported: exported})
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
		} else if !p.curTokenIs(lexer.RBRACE) {
			p.unexpected(p.curToken)
			return nil
		}
	}
	if !p.expectCur(lexer.RBRACE) {
		return nil
	}

	if p.curIsContextual("from") {
		stmt.Source = p.parseFromClause()
		if stmt.Source == nil {
			return nil
		}
		p.parseOptionalAttributes(stmt)
		for _, spec := range stmt.Specifiers {
			p.reserveExportName(spec.Exported.Value, spec.Exported.Token)
		}
	} else {
		for _, spec := range stmt.Specifiers {
			if spec.Local.IsString || spec.Local.Token.Type != lexer.IDENT {
				p.addError(spec.Token, fmt.Sprintf("'%s' is not a valid local binding to export; use a from clause", spec.Local.Value))
				return nil
			}
			p.exportLocal(spec.Local.Value, spec.Exported.Value, spec.Exported.Token)
		}
	}
	p.consumeSemicolon()
	return p.finishExport(stmt)
}

// --- Declaration analysis ---

func (p *Parser) reserveExportName(name string, tok lexer.Token) {
	if !p.moduleScope.ExportName(name) {
		p.addError(tok, fmt.Sprintf("cannot export a duplicate name '%s'", name))
	}
}

// exportLocal reserves the export name now and queues the binding so
// aliases are recorded in source order once all declarations are known.
func (p *Parser) exportLocal(local, exported string, tok lexer.Token) {
	p.reserveExportName(exported, tok)
	p.queueExport(local, exported, tok)
}

func (p *Parser) queueExport(local, exported string, tok lexer.Token) {
	p.pendingExports = append(p.pendingExports, pendingExport{local: local, exported: exported, token: tok})
}

func (p *Parser) resolveExports() {
	for _, pe := range p.pendingExports {
		entry, ok := p.lexicals.Get(pe.local)
		if !ok {
			entry, ok = p.vars.Get(pe.local)
		}
		if !ok {
			p.addError(pe.token, fmt.Sprintf("exported binding '%s' needs to refer to a top-level declared variable", pe.local))
			return
		}
		entry.Flags |= ExportedFlag
		p.moduleScope.ExportBinding(pe.local, pe.exported)
	}
}

func (p *Parser) redeclared(id *Identifier) {
	p.addError(id.Token, fmt.Sprintf("identifier '%s' has already been declared", id.Value))
}

func (p *Parser) declareVar(id *Identifier) {
	if p.lexicals.Contains(id.Value) {
		p.redeclared(id)
		return
	}
	if e, ok := p.vars.Get(id.Value); ok && e.IsFunction() && p.mode == ModuleMode {
		p.redeclared(id)
		return
	}
	p.vars.Add(id.Value).Flags |= VarFlag
}

// declareFunction declares a function. At module top level functions are
// lexically scoped, so they may not redeclare anything.
func (p *Parser) declareFunction(id *Identifier) {
	if p.lexicals.Contains(id.Value) || (p.mode == ModuleMode && p.vars.Contains(id.Value)) {
		p.redeclared(id)
		return
	}
	p.vars.Add(id.Value).Flags |= FunctionFlag
}

func (p *Parser) declareLexical(id *Identifier, flags VariableFlags) {
	if p.lexicals.Contains(id.Value) || p.vars.Contains(id.Value) {
		p.redeclared(id)
		return
	}
	p.lexicals.Add(id.Value).Flags |= flags
}

func (p *Parser) declareImport(spec ImportSpecifier, flags VariableFlags) {
	var tok lexer.Token
	switch s := spec.(type) {
	case *ImportDefaultSpecifier:
		tok = s.Local.Token
	case *ImportNamespaceSpecifier:
		tok = s.Local.Token
	case *ImportNamedSpecifier:
		tok = s.Local.Token
	}
	p.declareLexical(&Identifier{Token: tok, Value: spec.LocalName()}, flags)
}

// --- Function programs ---

func (p *Parser) parseFunctionProgram() *FunctionLiteral {
	if !p.expectCur(lexer.LPAREN) {
		return nil
	}
	fn := &FunctionLiteral{Token: p.curToken, SourceFile: p.source}
	if !p.expectCur(lexer.FUNCTION) {
		return nil
	}
	if p.curTokenIs(lexer.IDENT) {
		fn.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
		p.nextToken()
	}
	fn.Params = p.parseParams()
	if p.failed() {
		return nil
	}
	for _, param := range fn.Params {
		p.vars.Add(param).Flags |= VarFlag
	}
	if !p.curTokenIs(lexer.LBRACE) {
		p.unexpected(p.curToken)
		return nil
	}
	bodyStart := p.curToken.EndPos
	p.nextToken()
	fn.Body = p.parseStatementList(true)
	if p.failed() {
		return nil
	}
	fn.BodyText = p.source.Content[bodyStart:p.curToken.StartPos]
	p.nextToken() // '}'
	if !p.expectCur(lexer.RPAREN) {
		return nil
	}
	if p.curTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
	if !p.curTokenIs(lexer.EOF) {
		p.unexpected(p.curToken)
		return nil
	}
	fn.Variables = p.vars
	fn.Lexicals = p.lexicals
	return fn
}
