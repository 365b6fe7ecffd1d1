package parser

import (
	"esmod/pkg/lexer"
)

// Statements and expressions that declare nothing at the top level are
// skipped token by token. Brackets must balance, and a statement ends at a
// top-level ';', at the '}' closing the enclosing body, or where automatic
// semicolon insertion would apply.

var closers = map[lexer.TokenType]lexer.TokenType{
	lexer.LPAREN:   lexer.RPAREN,
	lexer.LBRACKET: lexer.RBRACKET,
	lexer.LBRACE:   lexer.RBRACE,
}

// skipStatement advances past one statement, consuming its ';' if present.
func (p *Parser) skipStatement() {
	var stack []lexer.TokenType
	for !p.failed() {
		tok := p.curToken
		if len(stack) == 0 {
			switch tok.Type {
			case lexer.EOF, lexer.RBRACE:
				return
			case lexer.SEMICOLON:
				p.nextToken()
				return
			}
		} else if tok.Type == lexer.EOF {
			p.unexpected(tok)
			return
		}
		if !p.consumeBracketed(&stack) {
			return
		}
		if len(stack) == 0 && p.atStatementBoundary() {
			return
		}
	}
}

// skipExpression advances to the end of an assignment expression. With
// stopAtComma it also stops at a top-level ',', as between declarators.
func (p *Parser) skipExpression(stopAtComma bool) {
	var stack []lexer.TokenType
	for !p.failed() {
		tok := p.curToken
		if len(stack) == 0 {
			switch tok.Type {
			case lexer.EOF, lexer.SEMICOLON, lexer.RPAREN, lexer.RBRACKET, lexer.RBRACE:
				return
			case lexer.COMMA:
				if stopAtComma {
					return
				}
			case lexer.VAR, lexer.LET, lexer.CONST, lexer.EXPORT:
				return
			case lexer.IMPORT:
				if !p.peekTokenIs(lexer.LPAREN) && !p.peekTokenIs(lexer.DOT) {
					return
				}
			}
		} else if tok.Type == lexer.EOF {
			p.unexpected(tok)
			return
		}
		if !p.consumeBracketed(&stack) {
			return
		}
		if len(stack) == 0 && p.atStatementBoundary() {
			return
		}
	}
}

// skipBalanced advances past the bracketed group opened by the current token.
func (p *Parser) skipBalanced() {
	var stack []lexer.TokenType
	for !p.failed() {
		if p.curTokenIs(lexer.EOF) {
			p.unexpected(p.curToken)
			return
		}
		if !p.consumeBracketed(&stack) {
			return
		}
		if len(stack) == 0 {
			return
		}
	}
}

// consumeBracketed consumes the current token, tracking bracket nesting on
// stack. It reports false after recording an error.
func (p *Parser) consumeBracketed(stack *[]lexer.TokenType) bool {
	tok := p.curToken
	switch tok.Type {
	case lexer.LPAREN, lexer.LBRACKET, lexer.LBRACE:
		*stack = append(*stack, closers[tok.Type])
	case lexer.RPAREN, lexer.RBRACKET, lexer.RBRACE:
		n := len(*stack)
		if n == 0 || (*stack)[n-1] != tok.Type {
			p.unexpected(tok)
			return false
		}
		*stack = (*stack)[:n-1]
	case lexer.IMPORT:
		if !p.isPropertyName() && !p.peekTokenIs(lexer.LPAREN) && !p.peekTokenIs(lexer.DOT) {
			p.addError(tok, "import declarations may only appear at top level of a module")
			return false
		}
	case lexer.EXPORT:
		if !p.isPropertyName() && !p.peekTokenIs(lexer.LPAREN) {
			p.addError(tok, "export declarations may only appear at top level of a module")
			return false
		}
	}
	p.nextToken()
	return true
}

// isPropertyName reports whether the current token is used as a property
// name, as in `a.import` or `{ export: 1 }`.
func (p *Parser) isPropertyName() bool {
	switch p.prevToken.Type {
	case lexer.DOT, "?.":
		return true
	}
	return p.peekTokenIs(lexer.COLON)
}

// atStatementBoundary reports whether a statement may end between
// prevToken and curToken.
func (p *Parser) atStatementBoundary() bool {
	prev, next := p.prevToken, p.curToken
	if prev.Type == lexer.RBRACE && p.isDeclarationStart() {
		return true
	}
	return next.NewlineBefore && p.prevCanEndExpression() && canStartStatement(next)
}

// prevCanEndExpression also accepts reserved words used as property names,
// as in `obj.default`.
func (p *Parser) prevCanEndExpression() bool {
	if canEndExpression(p.prevToken) {
		return true
	}
	return lexer.IsIdentifierName(p.prevToken) && (p.beforePrev == lexer.DOT || p.beforePrev == "?.")
}

func (p *Parser) isDeclarationStart() bool {
	switch p.curToken.Type {
	case lexer.VAR, lexer.LET, lexer.CONST, lexer.FUNCTION, lexer.CLASS, lexer.EXPORT:
		return true
	case lexer.IMPORT:
		return !p.peekTokenIs(lexer.LPAREN) && !p.peekTokenIs(lexer.DOT)
	}
	return p.isAsyncFunction()
}

func canEndExpression(tok lexer.Token) bool {
	switch tok.Type {
	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.TEMPLATE, lexer.REGEX,
		lexer.RPAREN, lexer.RBRACKET, lexer.RBRACE, "++", "--":
		return true
	case lexer.KEYWORD:
		switch tok.Literal {
		case "this", "super", "null", "true", "false":
			return true
		}
	}
	return false
}

func canStartStatement(tok lexer.Token) bool {
	switch tok.Type {
	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.REGEX, lexer.LBRACE,
		lexer.IMPORT, lexer.EXPORT, lexer.VAR, lexer.LET, lexer.CONST,
		lexer.FUNCTION, lexer.CLASS, "++", "--", "!", "~", "@":
		return true
	case lexer.KEYWORD:
		return tok.Literal != "in" && tok.Literal != "instanceof"
	}
	return false
}
