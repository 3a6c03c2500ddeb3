package sqlparse

import (
	"strconv"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/tinyrel/tinyrel/plan/ast"
)

// ErrSyntax covers every way query text fails to parse.
var ErrSyntax = errors.NewKind("sqlparse: syntax error: %s")

// Parser consumes tokens from a lexer with one token of lookahead.
type Parser struct {
	lex  *lexer
	cur  token
	peek token
}

// New returns a Parser positioned at the start of query.
func New(query string) *Parser {
	p := &Parser{lex: newLexer(query)}
	p.advance()
	p.advance()
	return p
}

// Parse parses query as a single SELECT statement.
func Parse(query string) (*ast.SelectStatement, error) {
	return New(query).ParseSelect()
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.next()
}

func (p *Parser) curIsKeyword(kw string) bool  { return isKeyword(p.cur, kw) }
func (p *Parser) peekIsKeyword(kw string) bool { return isKeyword(p.peek, kw) }

func (p *Parser) curIsPunct(v string) bool { return p.cur.kind == tokPunct && p.cur.val == v }

func (p *Parser) expectPunct(v string) error {
	if !p.curIsPunct(v) {
		return ErrSyntax.New("expected '" + v + "'")
	}
	p.advance()
	return nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.curIsKeyword(kw) {
		return ErrSyntax.New("expected " + kw)
	}
	p.advance()
	return nil
}

// ParseSelect parses a full SELECT statement, per the grammar:
//
//	SELECT [DISTINCT] (* | item (',' item)*)
//	FROM ident
//	([INNER | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER]] JOIN ident [ON expr])*
//	[WHERE expr]
//	[GROUP BY ident (',' ident)*]
//	[ORDER BY ident [ASC|DESC] (',' ident [ASC|DESC])*]
func (p *Parser) ParseSelect() (*ast.SelectStatement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &ast.SelectStatement{}

	if p.curIsKeyword("DISTINCT") {
		stmt.Distinct = true
		p.advance()
	}

	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	stmt.Columns = items

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt.From = []string{table}

	for p.curIsKeyword("JOIN") || p.curIsKeyword("INNER") || p.curIsKeyword("LEFT") || p.curIsKeyword("RIGHT") || p.curIsKeyword("FULL") {
		join, err := p.parseJoinClause()
		if err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, *join)
	}

	if p.curIsKeyword("WHERE") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}

	if p.curIsKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		cols, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.GroupBy = cols
	}

	if p.curIsKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		terms, err := p.parseOrderList()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = terms
	}

	if p.cur.kind != tokEOF && !p.curIsPunct(";") {
		return nil, ErrSyntax.New("unexpected trailing input")
	}
	return stmt, nil
}

func (p *Parser) parseSelectList() ([]ast.SelectItem, error) {
	if p.curIsPunct("*") {
		p.advance()
		return nil, nil
	}
	var items []ast.SelectItem
	for {
		expr, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		item := ast.SelectItem{Expr: expr}
		if p.curIsKeyword("AS") {
			p.advance()
			name, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			item.Alias = name
		} else if p.cur.kind == tokIdent && !p.curIsKeyword("FROM") {
			name, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			item.Alias = name
		}
		items = append(items, item)
		if p.curIsPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseJoinClause() (*ast.JoinClause, error) {
	kind := ast.InnerJoin
	switch {
	case p.curIsKeyword("INNER"):
		p.advance()
	case p.curIsKeyword("LEFT"):
		kind = ast.LeftJoin
		p.advance()
		if p.curIsKeyword("OUTER") {
			p.advance()
		}
	case p.curIsKeyword("RIGHT"):
		kind = ast.RightJoin
		p.advance()
		if p.curIsKeyword("OUTER") {
			p.advance()
		}
	case p.curIsKeyword("FULL"):
		kind = ast.FullOuterJoin
		p.advance()
		if p.curIsKeyword("OUTER") {
			p.advance()
		}
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	join := &ast.JoinClause{Table: table, Kind: kind}
	if p.curIsKeyword("ON") {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		join.On = cond
	}
	return join, nil
}

func (p *Parser) parseIdentList() ([]string, error) {
	var out []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		out = append(out, name)
		if p.curIsPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseOrderList() ([]ast.OrderTerm, error) {
	var out []ast.OrderTerm
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		term := ast.OrderTerm{Column: name}
		if p.curIsKeyword("DESC") {
			term.Desc = true
			p.advance()
		} else if p.curIsKeyword("ASC") {
			p.advance()
		}
		out = append(out, term)
		if p.curIsPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseIdent() (string, error) {
	if p.cur.kind != tokIdent {
		return "", ErrSyntax.New("expected identifier")
	}
	name := p.cur.val
	p.advance()
	return name, nil
}

// parseExpr is the WHERE/ON entry point: OR binds loosest, AND next, NOT
// tightest among the boolean combinators, above comparison and arithmetic.
func (p *Parser) parseExpr() (ast.Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.curIsKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.curIsKeyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expression, error) {
	if p.curIsKeyword("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.Not{Operand: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]ast.CompareOp{
	"=": ast.OpEq, "<>": ast.OpNe, "!=": ast.OpNe,
	"<": ast.OpLt, "<=": ast.OpLe, ">": ast.OpGt, ">=": ast.OpGe,
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if p.cur.kind == tokPunct {
		if op, ok := compareOps[p.cur.val]; ok {
			p.advance()
			right, err := p.parseArith()
			if err != nil {
				return nil, err
			}
			return &ast.Comparison{Left: left, Op: op, Right: right}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseArith() (ast.Expression, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.curIsPunct("+") || p.curIsPunct("-") {
		code := byte(p.cur.val[0])
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.Arith{Code: code, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.curIsPunct("*") || p.curIsPunct("/") {
		code := byte(p.cur.val[0])
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Arith{Code: code, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.curIsPunct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Arith{Code: '-', Left: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	switch {
	case p.cur.kind == tokInt:
		v, err := strconv.ParseInt(p.cur.val, 10, 64)
		if err != nil {
			return nil, ErrSyntax.New("bad integer literal " + p.cur.val)
		}
		p.advance()
		return &ast.IntLiteral{Value: v}, nil
	case p.cur.kind == tokFloat:
		v, err := strconv.ParseFloat(p.cur.val, 64)
		if err != nil {
			return nil, ErrSyntax.New("bad float literal " + p.cur.val)
		}
		p.advance()
		return &ast.FloatLiteral{Value: v}, nil
	case p.cur.kind == tokString:
		v := p.cur.val
		p.advance()
		return &ast.StringLiteral{Value: v}, nil
	case p.curIsKeyword("TRUE"):
		p.advance()
		return &ast.BoolLiteral{Value: true}, nil
	case p.curIsKeyword("FALSE"):
		p.advance()
		return &ast.BoolLiteral{Value: false}, nil
	case p.curIsPunct("("):
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr, nil
	case p.cur.kind == tokIdent:
		name := p.cur.val
		p.advance()
		// table.column qualifiers are accepted but not retained: schema
		// attribute names are unqualified, and equijoin inference matches
		// across tables by bare name (see predicate.ExtractEquijoin).
		for p.curIsPunct(".") {
			p.advance()
			ident, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			name = ident
		}
		return &ast.Column{Name: name}, nil
	default:
		return nil, ErrSyntax.New("unexpected token")
	}
}
