package pongo3

import (
	"math/big"
	"strconv"
)

// parseExpression parses a full expression, including the trailing
// conditional-expression form `a if cond else b`.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseTernary()
}

// parseExpressionNoCond parses an expression but stops short of the
// top-level ternary form, since `{% for x in seq if cond %}` uses a bare
// trailing `if` as the loop filter rather than as `a if cond else b`.
func (p *Parser) parseExpressionNoCond() (Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseTernary() (Expr, error) {
	start := p.cur().Span
	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Typ == TokenKeyword && p.cur().Val == "if" {
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var elseExpr Expr
		if p.cur().Typ == TokenKeyword && p.cur().Val == "else" {
			p.advance()
			elseExpr, err = p.parseTernary()
			if err != nil {
				return nil, err
			}
		}
		return &TernaryExpr{baseExpr: baseExpr{baseNode{start}}, Cond: cond, Then: then, Else: elseExpr}, nil
	}
	return then, nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Typ == TokenKeyword && p.cur().Val == "or" {
		start := p.cur().Span
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: BinOr, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().Typ == TokenKeyword && p.cur().Val == "and" {
		start := p.cur().Span
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: BinAnd, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.cur().Typ == TokenKeyword && p.cur().Val == "not" {
		start := p.cur().Span
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{baseExpr: baseExpr{baseNode{start}}, Op: UnNot, X: x}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		start := p.cur().Span
		var op BinOp
		matched := true
		switch {
		case p.isSymbol("=="):
			op = BinEq
		case p.isSymbol("!="):
			op = BinNe
		case p.isSymbol("<="):
			op = BinLe
		case p.isSymbol(">="):
			op = BinGe
		case p.isSymbol("<"):
			op = BinLt
		case p.isSymbol(">"):
			op = BinGt
		case p.cur().Typ == TokenKeyword && p.cur().Val == "in":
			op = BinIn
		case p.cur().Typ == TokenKeyword && p.cur().Val == "not" && p.peekN(1).Typ == TokenKeyword && p.peekN(1).Val == "in":
			p.advance() // 'not'
			p.advance() // 'in'
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			in := &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: BinIn, L: left, R: right}
			left = &UnaryExpr{baseExpr: baseExpr{baseNode{start}}, Op: UnNot, X: in}
			continue
		default:
			matched = false
		}
		if !matched {
			break
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		start := p.cur().Span
		var op BinOp
		switch {
		case p.isSymbol("+"):
			op = BinAdd
		case p.isSymbol("-"):
			op = BinSub
		case p.isSymbol("~"):
			op = BinConcat
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: op, L: left, R: right}
	}
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		start := p.cur().Span
		var op BinOp
		switch {
		case p.isSymbol("*"):
			op = BinMul
		case p.isSymbol("//"):
			op = BinFloorDiv
		case p.isSymbol("/"):
			op = BinDiv
		case p.isSymbol("%"):
			op = BinMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: op, L: left, R: right}
	}
}

// parseUnary binds looser than power, so `-2**2` parses as `-(2**2)`.
func (p *Parser) parseUnary() (Expr, error) {
	if p.isSymbol("-") {
		start := p.cur().Span
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{baseExpr: baseExpr{baseNode{start}}, Op: UnNeg, X: x}, nil
	}
	if p.isSymbol("+") {
		p.advance()
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower is right-associative: `2**3**2` == `2**(3**2)`.
func (p *Parser) parsePower() (Expr, error) {
	left, err := p.parseFilterChain()
	if err != nil {
		return nil, err
	}
	if p.isSymbol("**") {
		start := p.cur().Span
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinExpr{baseExpr: baseExpr{baseNode{start}}, Op: BinPow, L: left, R: right}, nil
	}
	return left, nil
}

func (p *Parser) parseFilterChain() (Expr, error) {
	x, err := p.parseTestChain()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("|") {
		start := p.cur().Span
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		fe := &FilterExpr{baseExpr: baseExpr{baseNode{start}}, X: x, Name: name.Val}
		if p.isSymbol("(") {
			p.advance()
			args, kwargs, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			fe.Args, fe.Kwargs = args, kwargs
		}
		x = fe
	}
	return x, nil
}

func (p *Parser) parseTestChain() (Expr, error) {
	x, err := p.parseTrailers()
	if err != nil {
		return nil, err
	}
	if p.cur().Typ == TokenKeyword && p.cur().Val == "is" {
		start := p.cur().Span
		p.advance()
		negate := false
		if p.cur().Typ == TokenKeyword && p.cur().Val == "not" {
			p.advance()
			negate = true
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		te := &TestExpr{baseExpr: baseExpr{baseNode{start}}, X: x, Name: name.Val, Negate: negate}
		if p.isSymbol("(") {
			p.advance()
			args, _, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			te.Args = args
		} else if !p.isTrailerEnd() {
			// `is divisibleby 3` -- bare-argument form without parens.
			arg, err := p.parseAdditive()
			if err == nil {
				te.Args = []Expr{arg}
			}
		}
		return te, nil
	}
	return x, nil
}

// isTrailerEnd reports whether the current token plausibly ends an
// expression, used to decide whether a bare test name is followed by a
// single unparenthesized argument.
func (p *Parser) isTrailerEnd() bool {
	t := p.cur()
	if t.Typ == TokenEOF || t.Typ == TokenText {
		return true
	}
	if t.Typ == TokenKeyword {
		switch t.Val {
		case "and", "or", "if", "else", "recursive":
			return true
		}
		return false
	}
	if t.Typ == TokenSymbol {
		switch t.Val {
		case ")", "]", "}", ",", "|", ":":
			return true
		}
	}
	return false
}

func (p *Parser) parseTrailers() (Expr, error) {
	return p.parsePrimaryWithTrailers()
}

// parsePrimaryWithTrailers parses an atom followed by any chain of
// `.name`, `[expr]`/`[lo:hi:step]` and `(args)` trailers.
func (p *Parser) parsePrimaryWithTrailers() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isSymbol("."):
			start := p.cur().Span
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			x = &GetAttrExpr{baseExpr: baseExpr{baseNode{start}}, X: x, Name: name.Val}
		case p.isSymbol("["):
			start := p.cur().Span
			p.advance()
			expr, err := p.parseSubscript(x, start)
			if err != nil {
				return nil, err
			}
			x = expr
		case p.isSymbol("("):
			start := p.cur().Span
			p.advance()
			args, kwargs, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			x = &CallExpr{baseExpr: baseExpr{baseNode{start}}, Callee: x, Args: args, Kwargs: kwargs}
		default:
			return x, nil
		}
	}
}

// parseSubscript parses the contents of `x[...]` after the `[` has been
// consumed, producing either GetItemExpr or SliceExpr.
func (p *Parser) parseSubscript(x Expr, start Span) (Expr, error) {
	var lo, hi, step Expr
	var err error
	isSlice := false
	if !p.isSymbol(":") {
		lo, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if p.isSymbol(":") {
		isSlice = true
		p.advance()
		if !p.isSymbol(":") && !p.isSymbol("]") {
			hi, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		if p.isSymbol(":") {
			p.advance()
			if !p.isSymbol("]") {
				step, err = p.parseExpression()
				if err != nil {
					return nil, err
				}
			}
		}
	}
	if _, err := p.expect(TokenSymbol, "]"); err != nil {
		return nil, err
	}
	if isSlice {
		return &SliceExpr{baseExpr: baseExpr{baseNode{start}}, X: x, Lo: lo, Hi: hi, Step: step}, nil
	}
	return &GetItemExpr{baseExpr: baseExpr{baseNode{start}}, X: x, Index: lo}, nil
}

// parseCallArgs parses a call argument list after the opening `(` has been
// consumed, up to and including the closing `)`.
func (p *Parser) parseCallArgs() ([]Expr, []Kwarg, error) {
	var args []Expr
	var kwargs []Kwarg
	for !p.isSymbol(")") {
		if len(args) > 0 || len(kwargs) > 0 {
			if _, err := p.expect(TokenSymbol, ","); err != nil {
				return nil, nil, err
			}
			if p.isSymbol(")") {
				break
			}
		}
		if p.cur().Typ == TokenIdentifier && p.peekN(1).Typ == TokenSymbol && p.peekN(1).Val == "=" {
			name := p.advance()
			p.advance() // '='
			v, err := p.parseExpression()
			if err != nil {
				return nil, nil, err
			}
			kwargs = append(kwargs, Kwarg{Name: name.Val, Value: v})
			continue
		}
		v, err := p.parseExpression()
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v)
	}
	p.advance() // ')'
	return args, kwargs, nil
}

// parsePrimary parses an atom: literal, identifier, parenthesized
// expression/tuple, list literal or map literal.
func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.Typ {
	case TokenInt:
		p.advance()
		if n, err := strconv.ParseInt(t.Val, 10, 64); err == nil {
			return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: Int(n)}, nil
		}
		bi, ok := new(big.Int).SetString(t.Val, 10)
		if !ok {
			return nil, p.errorf(t, "invalid integer literal %q", t.Val)
		}
		return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: BigInt(bi)}, nil
	case TokenFloat:
		p.advance()
		f, err := strconv.ParseFloat(t.Val, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid float literal %q", t.Val)
		}
		return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: Float(f)}, nil
	case TokenString:
		p.advance()
		return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: String(t.Val)}, nil
	case TokenIdentifier:
		p.advance()
		return &VarExpr{baseExpr: baseExpr{baseNode{t.Span}}, Name: t.Val}, nil
	case TokenKeyword:
		p.advance()
		switch t.Val {
		case "true", "True":
			return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: Bool(true)}, nil
		case "false", "False":
			return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: Bool(false)}, nil
		case "none", "None":
			return &ConstExpr{baseExpr: baseExpr{baseNode{t.Span}}, Value: None}, nil
		}
		// Other keywords (e.g. a stray `recursive`/`as`) are not valid atoms;
		// treat them as identifiers so expressions like `loop` still resolve
		// since `loop` itself is not in the keyword set.
		return &VarExpr{baseExpr: baseExpr{baseNode{t.Span}}, Name: t.Val}, nil
	case TokenSymbol:
		switch t.Val {
		case "(":
			return p.parseParenOrTuple()
		case "[":
			return p.parseListLiteral()
		case "{":
			return p.parseMapLiteral()
		case "-", "+":
			return p.parseUnary()
		}
	}
	return nil, p.errorf(t, "unexpected token %q", t.Val)
}

func (p *Parser) parseParenOrTuple() (Expr, error) {
	start := p.cur().Span
	p.advance() // '('
	if p.isSymbol(")") {
		p.advance()
		return &ListExpr{baseExpr: baseExpr{baseNode{start}}, Items: nil}, nil
	}
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.isSymbol(",") {
		if _, err := p.expect(TokenSymbol, ")"); err != nil {
			return nil, err
		}
		return first, nil
	}
	items := []Expr{first}
	for p.isSymbol(",") {
		p.advance()
		if p.isSymbol(")") {
			break
		}
		it, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if _, err := p.expect(TokenSymbol, ")"); err != nil {
		return nil, err
	}
	return &ListExpr{baseExpr: baseExpr{baseNode{start}}, Items: items}, nil
}

func (p *Parser) parseListLiteral() (Expr, error) {
	start := p.cur().Span
	p.advance() // '['
	var items []Expr
	for !p.isSymbol("]") {
		if len(items) > 0 {
			if _, err := p.expect(TokenSymbol, ","); err != nil {
				return nil, err
			}
			if p.isSymbol("]") {
				break
			}
		}
		it, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	p.advance() // ']'
	return &ListExpr{baseExpr: baseExpr{baseNode{start}}, Items: items}, nil
}

func (p *Parser) parseMapLiteral() (Expr, error) {
	start := p.cur().Span
	p.advance() // '{'
	var keys, vals []Expr
	for !p.isSymbol("}") {
		if len(keys) > 0 {
			if _, err := p.expect(TokenSymbol, ","); err != nil {
				return nil, err
			}
			if p.isSymbol("}") {
				break
			}
		}
		k, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenSymbol, ":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		vals = append(vals, v)
	}
	p.advance() // '}'
	return &MapExpr{baseExpr: baseExpr{baseNode{start}}, Keys: keys, Vals: vals}, nil
}
