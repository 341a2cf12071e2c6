package pongo3

// foldStmtConsts recurses folding into every expression reachable from a
// statement tree, so the compiler always sees a pre-folded AST regardless
// of how deeply an expression is nested inside control-flow bodies.
func foldStmtConsts(s Stmt) Stmt {
	switch n := s.(type) {
	case *EmitExprStmt:
		n.X = foldConsts(n.X)
	case *IfStmt:
		for i := range n.Branches {
			if n.Branches[i].Cond != nil {
				n.Branches[i].Cond = foldConsts(n.Branches[i].Cond)
			}
			foldStmtList(n.Branches[i].Body)
		}
	case *ForStmt:
		n.Iter = foldConsts(n.Iter)
		if n.Cond != nil {
			n.Cond = foldConsts(n.Cond)
		}
		foldStmtList(n.Body)
		foldStmtList(n.Else)
	case *WithStmt:
		for i := range n.Vals {
			n.Vals[i] = foldConsts(n.Vals[i])
		}
		foldStmtList(n.Body)
	case *SetStmt:
		n.Value = foldConsts(n.Value)
	case *SetBlockStmt:
		foldStmtList(n.Body)
		foldFilterCalls(n.Filters)
	case *FilterBlockStmt:
		foldStmtList(n.Body)
		foldFilterCalls(n.Filters)
	case *AutoEscapeStmt:
		n.Mode = foldConsts(n.Mode)
		foldStmtList(n.Body)
	case *BlockStmt:
		foldStmtList(n.Body)
	case *ExtendsStmt:
		n.Parent = foldConsts(n.Parent)
	case *IncludeStmt:
		n.Name = foldConsts(n.Name)
	case *ImportStmt:
		n.Source = foldConsts(n.Source)
	case *MacroStmt:
		for i := range n.Params {
			if n.Params[i].Default != nil {
				n.Params[i].Default = foldConsts(n.Params[i].Default)
			}
		}
		foldStmtList(n.Body)
	case *CallBlockStmt:
		n.Call.Callee = foldConsts(n.Call.Callee)
		for i := range n.Call.Args {
			n.Call.Args[i] = foldConsts(n.Call.Args[i])
		}
		for i := range n.Call.Kwargs {
			n.Call.Kwargs[i].Value = foldConsts(n.Call.Kwargs[i].Value)
		}
		foldStmtList(n.Body)
	case *DoStmt:
		n.X = foldConsts(n.X)
	}
	return s
}

func foldStmtList(stmts []Stmt) {
	for i := range stmts {
		stmts[i] = foldStmtConsts(stmts[i])
	}
}

func foldFilterCalls(filters []FilterCall) {
	for i := range filters {
		for j := range filters[i].Args {
			filters[i].Args[j] = foldConsts(filters[i].Args[j])
		}
		for j := range filters[i].Kwargs {
			filters[i].Kwargs[j].Value = foldConsts(filters[i].Kwargs[j].Value)
		}
	}
}

// foldConsts walks an expression tree bottom-up, collapsing any subtree
// built entirely from ConstExpr nodes (and pure operators) into a single
// ConstExpr. This mirrors §4.2's constant-folding pass: it runs once over
// the AST before compilation so the VM never re-evaluates `1 + 2` or
// `"a" ~ "b"` on every render.
//
// Folding is best-effort: any error encountered while evaluating a
// candidate constant (e.g. division by zero) just aborts folding of that
// node and returns the original, unfolded expression -- the error will
// surface at render time instead, with a proper location attached.
func foldConsts(e Expr) Expr {
	switch n := e.(type) {
	case *UnaryExpr:
		n.X = foldConsts(n.X)
		if c, ok := n.X.(*ConstExpr); ok {
			if v, err := evalUnaryConst(n.Op, c.Value); err == nil {
				return &ConstExpr{baseExpr: n.baseExpr, Value: v}
			}
		}
		return n
	case *BinExpr:
		n.L = foldConsts(n.L)
		n.R = foldConsts(n.R)
		lc, lok := n.L.(*ConstExpr)
		rc, rok := n.R.(*ConstExpr)
		if lok && rok {
			if v, err := evalBinConst(n.Op, lc.Value, rc.Value); err == nil {
				return &ConstExpr{baseExpr: n.baseExpr, Value: v}
			}
		}
		return n
	case *ListExpr:
		allConst := true
		for i, it := range n.Items {
			n.Items[i] = foldConsts(it)
			if _, ok := n.Items[i].(*ConstExpr); !ok {
				allConst = false
			}
		}
		if allConst {
			items := make([]Value, len(n.Items))
			for i, it := range n.Items {
				items[i] = it.(*ConstExpr).Value
			}
			return &ConstExpr{baseExpr: n.baseExpr, Value: Seq(items)}
		}
		return n
	case *MapExpr:
		allConst := true
		for i := range n.Keys {
			n.Keys[i] = foldConsts(n.Keys[i])
			n.Vals[i] = foldConsts(n.Vals[i])
			if _, ok := n.Keys[i].(*ConstExpr); !ok {
				allConst = false
			}
			if _, ok := n.Vals[i].(*ConstExpr); !ok {
				allConst = false
			}
		}
		if allConst {
			m := NewOrderedMap()
			for i := range n.Keys {
				m.Set(n.Keys[i].(*ConstExpr).Value, n.Vals[i].(*ConstExpr).Value)
			}
			return &ConstExpr{baseExpr: n.baseExpr, Value: Map(m)}
		}
		return n
	case *TernaryExpr:
		n.Cond = foldConsts(n.Cond)
		n.Then = foldConsts(n.Then)
		if n.Else != nil {
			n.Else = foldConsts(n.Else)
		}
		if c, ok := n.Cond.(*ConstExpr); ok {
			if c.Value.IsTruthy() {
				return n.Then
			}
			if n.Else != nil {
				return n.Else
			}
			return &ConstExpr{baseExpr: n.baseExpr, Value: Undefined()}
		}
		return n
	case *GetAttrExpr:
		n.X = foldConsts(n.X)
		return n
	case *GetItemExpr:
		n.X = foldConsts(n.X)
		n.Index = foldConsts(n.Index)
		return n
	case *SliceExpr:
		n.X = foldConsts(n.X)
		if n.Lo != nil {
			n.Lo = foldConsts(n.Lo)
		}
		if n.Hi != nil {
			n.Hi = foldConsts(n.Hi)
		}
		if n.Step != nil {
			n.Step = foldConsts(n.Step)
		}
		return n
	case *CallExpr:
		n.Callee = foldConsts(n.Callee)
		for i := range n.Args {
			n.Args[i] = foldConsts(n.Args[i])
		}
		for i := range n.Kwargs {
			n.Kwargs[i].Value = foldConsts(n.Kwargs[i].Value)
		}
		return n
	case *FilterExpr:
		n.X = foldConsts(n.X)
		for i := range n.Args {
			n.Args[i] = foldConsts(n.Args[i])
		}
		for i := range n.Kwargs {
			n.Kwargs[i].Value = foldConsts(n.Kwargs[i].Value)
		}
		return n
	case *TestExpr:
		n.X = foldConsts(n.X)
		for i := range n.Args {
			n.Args[i] = foldConsts(n.Args[i])
		}
		return n
	default:
		return e
	}
}

func evalUnaryConst(op UnaryOp, v Value) (Value, error) {
	switch op {
	case UnNeg:
		return valueNeg(v)
	case UnNot:
		return Bool(!v.IsTruthy()), nil
	default:
		return Value{}, newErr(KindInvalidOperation, "unsupported unary operator")
	}
}

func evalBinConst(op BinOp, a, b Value) (Value, error) {
	switch op {
	case BinAdd:
		return valueAdd(a, b)
	case BinSub:
		return valueSub(a, b)
	case BinMul:
		return valueMul(a, b)
	case BinDiv:
		return valueDiv(a, b)
	case BinFloorDiv:
		return valueFloorDiv(a, b)
	case BinMod:
		return valueMod(a, b)
	case BinPow:
		return valuePow(a, b)
	case BinConcat:
		return Concat(a, b), nil
	case BinAnd:
		if !a.IsTruthy() {
			return a, nil
		}
		return b, nil
	case BinOr:
		if a.IsTruthy() {
			return a, nil
		}
		return b, nil
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe:
		ok, err := compareOp(op, a, b)
		if err != nil {
			return Value{}, err
		}
		return Bool(ok), nil
	case BinIn:
		ok, err := b.Contains(a)
		if err != nil {
			return Value{}, err
		}
		return Bool(ok), nil
	default:
		return Value{}, newErr(KindInvalidOperation, "unsupported binary operator")
	}
}
