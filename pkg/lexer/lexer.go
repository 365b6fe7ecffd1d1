package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// TokenType represents the type of a token. Punctuators use their own text
// as their type, so TokenType("+=") is a valid token type.
type TokenType string

// Token represents a lexical token.
type Token struct {
	Type     TokenType
	Literal  string // Lexeme; decoded value for STRING, raw text for TEMPLATE and REGEX
	Line     int    // 1-based line number where the token starts
	Column   int    // 1-based column number (rune index) where the token starts
	StartPos int    // 0-based byte offset where the token starts
	EndPos   int    // 0-based byte offset after the token ends

	// NewlineBefore is set when a line terminator separates this token from
	// the previous one. The parser uses it for automatic semicolon insertion.
	NewlineBefore bool
}

const (
	// Special
	ILLEGAL TokenType = "ILLEGAL" // Literal carries the error message
	EOF     TokenType = "EOF"

	// Identifiers + Literals
	IDENT    TokenType = "IDENT"
	NUMBER   TokenType = "NUMBER"
	STRING   TokenType = "STRING"
	TEMPLATE TokenType = "TEMPLATE"
	REGEX    TokenType = "REGEX"

	// Punctuators the parser inspects
	ASSIGN    TokenType = "="
	ASTERISK  TokenType = "*"
	SLASH     TokenType = "/"
	DOT       TokenType = "."
	SPREAD    TokenType = "..."
	ARROW     TokenType = "=>"
	COMMA     TokenType = ","
	SEMICOLON TokenType = ";"
	COLON     TokenType = ":"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"

	// Keywords with their own type
	IMPORT   TokenType = "IMPORT"
	EXPORT   TokenType = "EXPORT"
	DEFAULT  TokenType = "DEFAULT"
	VAR      TokenType = "VAR"
	LET      TokenType = "LET"
	CONST    TokenType = "CONST"
	FUNCTION TokenType = "FUNCTION"
	CLASS    TokenType = "CLASS"

	// KEYWORD covers every other reserved word; Literal holds the word.
	KEYWORD TokenType = "KEYWORD"
)

var keywords = map[string]TokenType{
	"import":   IMPORT,
	"export":   EXPORT,
	"default":  DEFAULT,
	"var":      VAR,
	"let":      LET,
	"const":    CONST,
	"function": FUNCTION,
	"class":    CLASS,
}

var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "continue": true,
	"debugger": true, "delete": true, "do": true, "else": true, "enum": true,
	"extends": true, "false": true, "finally": true, "for": true, "if": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "void": true, "while": true, "with": true,
	"yield": true,
}

// LookupIdent checks the keyword tables for an identifier.
func LookupIdent(ident string) TokenType {
	if tokType, ok := keywords[ident]; ok {
		return tokType
	}
	if reservedWords[ident] {
		return KEYWORD
	}
	return IDENT
}

// IsIdentifierName reports whether tok can serve as an IdentifierName
// (property or export name), which includes reserved words.
func IsIdentifierName(tok Token) bool {
	switch tok.Type {
	case IDENT, KEYWORD, IMPORT, EXPORT, DEFAULT, VAR, LET, CONST, FUNCTION, CLASS:
		return true
	}
	return false
}

// punctuators is ordered longest first so the scanner takes the longest match.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@",
}

// Lexer holds the state of the scanner.
type Lexer struct {
	input        string
	position     int  // current position in input (byte offset of ch)
	readPosition int  // byte offset after ch
	ch           byte // current byte under examination, 0 at EOF
	line         int  // current 1-based line number
	column       int  // current 1-based column number

	prev    TokenType // type of the last token returned, for regex detection
	prevLit string
	newline bool // a line terminator was skipped since the last token
}

// NewLexer creates a new Lexer.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	if strings.HasPrefix(input, "#!") {
		l.skipComment()
	}
	return l
}

// readChar advances one byte, keeping line and rune-based column counts.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.position >= len(l.input) || l.ch&0xC0 != 0x80 {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEOF() bool { return l.position >= len(l.input) }

// currentRune decodes the (possibly multi-byte) rune at the current position.
func (l *Lexer) currentRune() (rune, int) {
	if l.atEOF() {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.input[l.position:])
}

func (l *Lexer) advanceRune(size int) {
	for i := 0; i < size; i++ {
		l.readChar()
	}
}

// skipWhitespace consumes whitespace, line terminators and comments. It
// reports an unterminated block comment as false.
func (l *Lexer) skipWhitespace() bool {
	for !l.atEOF() {
		switch {
		case l.ch == '\n' || l.ch == '\r':
			l.newline = true
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\v' || l.ch == '\f':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			l.skipComment()
		case l.ch == '/' && l.peekChar() == '*':
			if !l.skipMultilineComment() {
				return false
			}
		case l.ch >= utf8.RuneSelf:
			r, size := l.currentRune()
			if r == '\u2028' || r == '\u2029' {
				l.newline = true
			} else if !unicode.IsSpace(r) && r != '\ufeff' {
				return true
			}
			l.advanceRune(size)
		default:
			return true
		}
	}
	return true
}

// State is a snapshot of the scanner taken by Save.
type State struct {
	position, readPosition int
	ch                     byte
	line, column           int
	prev                   TokenType
	prevLit                string
	newline                bool
}

// Save returns the scanner state before the next token.
func (l *Lexer) Save() State {
	return State{l.position, l.readPosition, l.ch, l.line, l.column, l.prev, l.prevLit, l.newline}
}

// Restore rewinds the scanner to s.
func (l *Lexer) Restore(s State) {
	l.position, l.readPosition, l.ch = s.position, s.readPosition, s.ch
	l.line, l.column = s.line, s.column
	l.prev, l.prevLit, l.newline = s.prev, s.prevLit, s.newline
}

// StartStatement tells the scanner that the next token begins a statement,
// so a '/' there opens a regular expression literal. The parser calls it
// after the '}' closing a function or class declaration, which the scanner
// alone cannot tell apart from the end of an expression.
func (l *Lexer) StartStatement() {
	l.prev, l.prevLit = SEMICOLON, ";"
}

// NextToken scans the input and returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	l.prev = tok.Type
	l.prevLit = tok.Literal
	return tok
}

func (l *Lexer) scan() Token {
	l.newline = false
	commentOK := l.skipWhitespace()

	tok := Token{Line: l.line, Column: l.column, StartPos: l.position, NewlineBefore: l.newline}
	finish := func(t TokenType, lit string) Token {
		tok.Type = t
		tok.Literal = lit
		tok.EndPos = l.position
		return tok
	}

	if !commentOK {
		return finish(ILLEGAL, "unterminated comment")
	}
	if l.atEOF() {
		return finish(EOF, "")
	}

	switch {
	case l.ch == '"' || l.ch == '\'':
		lit, err := l.readString(l.ch)
		if err != nil {
			return finish(ILLEGAL, err.Error())
		}
		return finish(STRING, lit)
	case l.ch == '`':
		if err := l.readTemplate(); err != nil {
			return finish(ILLEGAL, err.Error())
		}
		return finish(TEMPLATE, l.input[tok.StartPos:l.position])
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		l.readNumber()
		return finish(NUMBER, l.input[tok.StartPos:l.position])
	case l.ch == '/' && l.regexAllowed():
		if err := l.readRegex(); err != nil {
			return finish(ILLEGAL, err.Error())
		}
		return finish(REGEX, l.input[tok.StartPos:l.position])
	case l.ch == '#' && l.isIdentStartAt(l.readPosition):
		l.readChar()
		l.readIdentifier()
		return finish(IDENT, l.input[tok.StartPos:l.position])
	case l.isIdentStartAt(l.position):
		lit := l.readIdentifier()
		return finish(LookupIdent(lit), lit)
	}

	rest := l.input[l.position:]
	for _, p := range punctuators {
		if strings.HasPrefix(rest, p) {
			// "?." followed by a digit is a conditional with a decimal: a?.5:b
			if p == "?." && len(rest) > 2 && isDigit(rest[2]) {
				continue
			}
			for range p {
				l.readChar()
			}
			return finish(TokenType(p), p)
		}
	}

	r, size := l.currentRune()
	l.advanceRune(size)
	return finish(ILLEGAL, fmt.Sprintf("unexpected character %q", r))
}

// regexAllowed decides whether a '/' starts a regular expression literal,
// based on the previous significant token.
func (l *Lexer) regexAllowed() bool {
	switch l.prev {
	case "", LPAREN, LBRACKET, LBRACE, COMMA, SEMICOLON, COLON, ASSIGN, ARROW,
		IMPORT, EXPORT, DEFAULT, VAR, LET, CONST:
		return true
	case IDENT, NUMBER, STRING, TEMPLATE, REGEX, RPAREN, RBRACKET, RBRACE, CLASS, FUNCTION:
		return false
	case KEYWORD:
		switch l.prevLit {
		case "this", "super", "null", "true", "false":
			return false
		}
		return true
	}
	// Any other punctuator is an operator, after which an operand is expected,
	// except postfix increment/decrement.
	return l.prev != "++" && l.prev != "--"
}

func (l *Lexer) isIdentStartAt(pos int) bool {
	if pos >= len(l.input) {
		return false
	}
	c := l.input[pos]
	if c < utf8.RuneSelf {
		return isLetter(c) || c == '$' || c == '_'
	}
	r, _ := utf8.DecodeRuneInString(l.input[pos:])
	return unicode.IsLetter(r) || unicode.Is(unicode.Nl, r)
}

func (l *Lexer) isIdentPart() bool {
	if l.atEOF() {
		return false
	}
	if l.ch < utf8.RuneSelf {
		return isLetter(l.ch) || isDigit(l.ch) || l.ch == '$' || l.ch == '_'
	}
	r, _ := l.currentRune()
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Nl, r) ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r) ||
		r == '\u200c' || r == '\u200d'
}

// readIdentifier reads an identifier and returns its text.
func (l *Lexer) readIdentifier() string {
	startPos := l.position
	for l.isIdentPart() {
		if l.ch < utf8.RuneSelf {
			l.readChar()
			continue
		}
		_, size := l.currentRune()
		l.advanceRune(size)
	}
	return l.input[startPos:l.position]
}

// readNumber consumes a numeric literal: decimal with fraction and exponent,
// 0x/0o/0b prefixed integers, numeric separators and the BigInt suffix.
func (l *Lexer) readNumber() {
	if l.ch == '0' {
		switch l.peekChar() {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			l.readChar()
			l.readChar()
			for isHexDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			if l.ch == 'n' {
				l.readChar()
			}
			return
		}
	}
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == 'n' {
		l.readChar()
		return
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
}

// readString reads a string literal enclosed in quote and returns its
// decoded value. The lexer ends positioned after the closing quote.
func (l *Lexer) readString(quote byte) (string, error) {
	var builder strings.Builder
	l.readChar() // opening quote

	for {
		switch {
		case l.atEOF():
			return "", fmt.Errorf("unterminated string literal")
		case l.ch == quote:
			l.readChar()
			return builder.String(), nil
		case l.ch == '\n' || l.ch == '\r':
			return "", fmt.Errorf("unterminated string literal")
		case l.ch == '\\':
			l.readChar()
			if err := l.readEscape(&builder); err != nil {
				return "", err
			}
		default:
			builder.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readEscape decodes one escape sequence; the backslash is already consumed.
func (l *Lexer) readEscape(b *strings.Builder) error {
	c := l.ch
	switch c {
	case 0:
		if l.atEOF() {
			return fmt.Errorf("unterminated string literal")
		}
		b.WriteByte(0)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\r':
		l.readChar()
		if l.ch == '\n' {
			l.readChar()
		}
		return nil
	case '\n':
		// line continuation
	case 'x':
		l.readChar()
		r, ok := l.readHex(2)
		if !ok {
			return fmt.Errorf("invalid hexadecimal escape sequence")
		}
		b.WriteRune(r)
		return nil
	case 'u':
		l.readChar()
		var r rune
		var ok bool
		if l.ch == '{' {
			l.readChar()
			r, ok = l.readHexUntilBrace()
		} else {
			r, ok = l.readHex(4)
		}
		if !ok {
			return fmt.Errorf("invalid Unicode escape sequence")
		}
		b.WriteRune(r)
		return nil
	default:
		if c >= utf8.RuneSelf {
			r, size := l.currentRune()
			b.WriteRune(r)
			l.advanceRune(size)
			return nil
		}
		b.WriteByte(c)
	}
	l.readChar()
	return nil
}

func (l *Lexer) readHex(n int) (rune, bool) {
	var r rune
	for i := 0; i < n; i++ {
		if !isHexDigit(l.ch) {
			return 0, false
		}
		r = r*16 + hexValue(l.ch)
		l.readChar()
	}
	return r, true
}

func (l *Lexer) readHexUntilBrace() (rune, bool) {
	var r rune
	digits := 0
	for isHexDigit(l.ch) {
		r = r*16 + hexValue(l.ch)
		if r > unicode.MaxRune {
			return 0, false
		}
		digits++
		l.readChar()
	}
	if l.ch != '}' || digits == 0 {
		return 0, false
	}
	l.readChar()
	return r, true
}

// readTemplate consumes a template literal, including any nested
// substitutions, which are tokenized recursively.
func (l *Lexer) readTemplate() error {
	l.readChar() // opening backtick
	for {
		switch {
		case l.atEOF():
			return fmt.Errorf("unterminated template literal")
		case l.ch == '\\':
			l.readChar()
			if l.atEOF() {
				return fmt.Errorf("unterminated template literal")
			}
			l.readChar()
		case l.ch == '`':
			l.readChar()
			return nil
		case l.ch == '$' && l.peekChar() == '{':
			l.readChar()
			l.readChar()
			if err := l.skipSubstitution(); err != nil {
				return err
			}
		default:
			l.readChar()
		}
	}
}

func (l *Lexer) skipSubstitution() error {
	savedPrev, savedLit := l.prev, l.prevLit
	defer func() { l.prev, l.prevLit = savedPrev, savedLit }()

	l.prev, l.prevLit = LBRACE, "{"
	depth := 1
	for {
		tok := l.NextToken()
		switch tok.Type {
		case EOF:
			return fmt.Errorf("unterminated template literal")
		case ILLEGAL:
			return fmt.Errorf("%s", tok.Literal)
		case LBRACE:
			depth++
		case RBRACE:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

// readRegex consumes a regular expression literal and validates its body
// and flags.
func (l *Lexer) readRegex() error {
	l.readChar() // opening slash
	bodyStart := l.position
	inClass := false
	for {
		switch {
		case l.atEOF() || l.ch == '\n' || l.ch == '\r':
			return fmt.Errorf("unterminated regular expression literal")
		case l.ch == '\\':
			l.readChar()
			if l.atEOF() || l.ch == '\n' {
				return fmt.Errorf("unterminated regular expression literal")
			}
		case l.ch == '[':
			inClass = true
		case l.ch == ']':
			inClass = false
		case l.ch == '/' && !inClass:
			body := l.input[bodyStart:l.position]
			l.readChar()
			flagsStart := l.position
			for l.isIdentPart() {
				l.readChar()
			}
			return ValidateRegex(body, l.input[flagsStart:l.position])
		}
		l.readChar()
	}
}

// ValidateRegex reports whether body/flags form a valid regular expression
// literal. The body is compiled in regexp2's ECMAScript mode.
func ValidateRegex(body, flags string) error {
	var opts regexp2.RegexOptions = regexp2.ECMAScript
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return fmt.Errorf("duplicate flag %q in regular expression literal", f)
		}
		seen[f] = true
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 'g', 's', 'u', 'y', 'd', 'v':
		default:
			return fmt.Errorf("invalid regular expression flag %q", f)
		}
	}
	if _, err := regexp2.Compile(body, opts); err != nil {
		return fmt.Errorf("invalid regular expression /%s/: %w", body, err)
	}
	return nil
}

// skipComment reads until the end of the line.
func (l *Lexer) skipComment() {
	for l.ch != '\n' && !l.atEOF() {
		l.readChar()
	}
}

// skipMultilineComment consumes a block comment including its delimiters.
// A comment spanning lines counts as a line terminator.
func (l *Lexer) skipMultilineComment() bool {
	l.readChar()
	l.readChar()
	for {
		if l.atEOF() {
			return false
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return true
		}
		if l.ch == '\n' {
			l.newline = true
		}
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func hexValue(ch byte) rune {
	switch {
	case '0' <= ch && ch <= '9':
		return rune(ch - '0')
	case 'a' <= ch && ch <= 'f':
		return rune(ch-'a') + 10
	default:
		return rune(ch-'A') + 10
	}
}
