package pongo3

// compiler lowers a parsed AST into bytecode. One compiler instance is
// shared across a template's root body and every nested macro/block body it
// contains, so they all feed the same block table.
type compiler struct {
	tmpl   *Template
	blocks map[string]*Instructions
	parent Expr
}

// compileTemplate lowers a fully parsed TemplateNode into a ready-to-link
// Template. Constant folding (const_fold.go) should already have run over
// the tree before this is called.
func compileTemplate(name, source string, node *TemplateNode, undef UndefinedBehavior) (*Template, error) {
	t := &Template{name: name, source: source, blocks: make(map[string]*Instructions), undefinedBehavior: undef}
	c := &compiler{tmpl: t, blocks: t.blocks}
	root, err := c.compileBody(node.Body)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.parent = c.parent
	return t, nil
}

func (c *compiler) compileBody(stmts []Stmt) (*Instructions, error) {
	ins := &Instructions{}
	for _, s := range stmts {
		if err := c.compileStmt(ins, s); err != nil {
			return nil, err
		}
	}
	return ins, nil
}

func (c *compiler) emit(ins *Instructions, op Opcode, span Span) int {
	return ins.emit(Instruction{Op: op}, span)
}

func (c *compiler) compileStmt(ins *Instructions, s Stmt) error {
	switch n := s.(type) {
	case *EmitRawStmt:
		ins.emit(Instruction{Op: OpEmitRaw, Const: String(n.Text)}, n.Sp)
	case *EmitExprStmt:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpEmit}, n.Sp)
	case *IfStmt:
		return c.compileIf(ins, n)
	case *ForStmt:
		return c.compileFor(ins, n)
	case *WithStmt:
		return c.compileWith(ins, n)
	case *SetStmt:
		if err := c.compileExpr(ins, n.Value); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpStoreLocal, Names: n.Targets}, n.Sp)
	case *SetBlockStmt:
		return c.compileSetBlock(ins, n)
	case *FilterBlockStmt:
		return c.compileFilterBlock(ins, n)
	case *AutoEscapeStmt:
		return c.compileAutoEscape(ins, n)
	case *BlockStmt:
		return c.compileBlock(ins, n)
	case *ExtendsStmt:
		c.parent = n.Parent
	case *IncludeStmt:
		return c.compileInclude(ins, n)
	case *ImportStmt:
		return c.compileImport(ins, n)
	case *MacroStmt:
		return c.compileMacro(ins, n)
	case *CallBlockStmt:
		return c.compileCallBlock(ins, n)
	case *DoStmt:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpPop}, n.Sp)
	default:
		return newErr(KindSyntaxError, "unsupported statement node")
	}
	return nil
}

func (c *compiler) compileIf(ins *Instructions, n *IfStmt) error {
	var endJumps []int
	for i, br := range n.Branches {
		if br.Cond == nil {
			if err := c.compileBodyInto(ins, br.Body); err != nil {
				return err
			}
			continue
		}
		if err := c.compileExpr(ins, br.Cond); err != nil {
			return err
		}
		falseJump := ins.emit(Instruction{Op: OpJumpIfFalse}, n.Sp)
		if err := c.compileBodyInto(ins, br.Body); err != nil {
			return err
		}
		if i != len(n.Branches)-1 {
			endJumps = append(endJumps, ins.emit(Instruction{Op: OpJump}, n.Sp))
		}
		ins.patchTarget(falseJump, ins.len())
	}
	for _, j := range endJumps {
		ins.patchTarget(j, ins.len())
	}
	return nil
}

func (c *compiler) compileBodyInto(ins *Instructions, stmts []Stmt) error {
	for _, s := range stmts {
		if err := c.compileStmt(ins, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileFor(ins *Instructions, n *ForStmt) error {
	if err := c.compileExpr(ins, n.Iter); err != nil {
		return err
	}
	flags := LoopFlags{WithLoopVar: true, Recursive: n.Recursive, TupleUnpack: len(n.Target.Names) > 1}
	pushLoop := ins.emit(Instruction{Op: OpPushLoop, Names: n.Target.Names, LoopFlags: flags}, n.Sp)
	iterateAt := ins.len()
	iterate := ins.emit(Instruction{Op: OpIterate, Names: n.Target.Names, LoopFlags: flags}, n.Sp)
	if n.Cond != nil {
		if err := c.compileExpr(ins, n.Cond); err != nil {
			return err
		}
		skip := ins.emit(Instruction{Op: OpJumpIfFalse}, n.Sp)
		ins.patchTarget(skip, iterateAt)
	}
	if err := c.compileBodyInto(ins, n.Body); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpJump, Target: iterateAt}, n.Sp)
	ins.patchTarget(iterate, ins.len())
	ins.emit(Instruction{Op: OpPopFrame}, n.Sp)
	endJump := ins.emit(Instruction{Op: OpJump}, n.Sp)
	ins.patchTarget(pushLoop, ins.len())
	if len(n.Else) > 0 {
		if err := c.compileBodyInto(ins, n.Else); err != nil {
			return err
		}
	}
	ins.patchTarget(endJump, ins.len())
	return nil
}

func (c *compiler) compileWith(ins *Instructions, n *WithStmt) error {
	for _, v := range n.Vals {
		if err := c.compileExpr(ins, v); err != nil {
			return err
		}
	}
	ins.emit(Instruction{Op: OpPushWith, Names: n.Names}, n.Sp)
	if err := c.compileBodyInto(ins, n.Body); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpPopWith}, n.Sp)
	return nil
}

func (c *compiler) compileFilterCalls(ins *Instructions, filters []FilterCall, span Span) error {
	for _, fc := range filters {
		if err := c.compileCallArgsKwargs(ins, fc.Args, fc.Kwargs); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpApplyFilter, Names: []string{fc.Name}, Argc: len(fc.Args)}, span)
	}
	return nil
}

func (c *compiler) compileSetBlock(ins *Instructions, n *SetBlockStmt) error {
	ins.emit(Instruction{Op: OpBeginCapture}, n.Sp)
	if err := c.compileBodyInto(ins, n.Body); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpEndCapture, Capture: CapturePlain}, n.Sp)
	if err := c.compileFilterCalls(ins, n.Filters, n.Sp); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpStoreLocal, Names: []string{n.Target}}, n.Sp)
	return nil
}

func (c *compiler) compileFilterBlock(ins *Instructions, n *FilterBlockStmt) error {
	ins.emit(Instruction{Op: OpBeginCapture}, n.Sp)
	if err := c.compileBodyInto(ins, n.Body); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpEndCapture, Capture: CaptureFilter}, n.Sp)
	if err := c.compileFilterCalls(ins, n.Filters, n.Sp); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpEmit}, n.Sp)
	return nil
}

func (c *compiler) compileAutoEscape(ins *Instructions, n *AutoEscapeStmt) error {
	mode := AutoEscapeAuto
	if ce, ok := n.Mode.(*ConstExpr); ok {
		switch {
		case ce.Value.IsBool():
			if ce.Value.Bool() {
				mode = AutoEscapeAuto
			} else {
				mode = AutoEscapeNone
			}
		case ce.Value.IsString():
			switch ce.Value.String() {
			case "html":
				mode = AutoEscapeHTML
			case "json":
				mode = AutoEscapeJSON
			case "none":
				mode = AutoEscapeNone
			}
		}
	}
	ins.emit(Instruction{Op: OpPushAutoEscape, Const: Int(int64(mode))}, n.Sp)
	if err := c.compileBodyInto(ins, n.Body); err != nil {
		return err
	}
	ins.emit(Instruction{Op: OpPopAutoEscape}, n.Sp)
	return nil
}

func (c *compiler) compileBlock(ins *Instructions, n *BlockStmt) error {
	body, err := c.compileBody(n.Body)
	if err != nil {
		return err
	}
	c.blocks[n.Name] = body
	ins.emit(Instruction{Op: OpCallBlock, Names: []string{n.Name}}, n.Sp)
	return nil
}

func (c *compiler) compileInclude(ins *Instructions, n *IncludeStmt) error {
	if err := c.compileExpr(ins, n.Name); err != nil {
		return err
	}
	flags := 0
	if n.IgnoreMissing {
		flags |= 1
	}
	if n.WithContext {
		flags |= 2
	}
	ins.emit(Instruction{Op: OpInclude, Flags: flags}, n.Sp)
	return nil
}

func (c *compiler) compileImport(ins *Instructions, n *ImportStmt) error {
	if err := c.compileExpr(ins, n.Source); err != nil {
		return err
	}
	flags := 0
	if n.WithContext {
		flags |= 2
	}
	if n.FromImport {
		flags |= 4
		names := make([]string, len(n.Names))
		for i, name := range n.Names {
			alias := n.Aliases[i]
			if alias == "" {
				alias = name
			}
			names[i] = name + ":" + alias
		}
		ins.emit(Instruction{Op: OpImport, Flags: flags, Names: names}, n.Sp)
		return nil
	}
	ins.emit(Instruction{Op: OpImport, Flags: flags, Names: []string{n.Alias}}, n.Sp)
	return nil
}

func (c *compiler) compileMacro(ins *Instructions, n *MacroStmt) error {
	body, err := c.compileBody(n.Body)
	if err != nil {
		return err
	}
	params := make([]string, len(n.Params))
	defaults := make(map[string]Value)
	for i, p := range n.Params {
		params[i] = p.Name
		if p.Default != nil {
			if ce, ok := p.Default.(*ConstExpr); ok {
				defaults[p.Name] = ce.Value
			} else {
				defaults[p.Name] = Undefined()
			}
		}
	}
	def := &compiledMacro{name: n.Name, params: params, defaults: defaults, body: body, tmpl: c.tmpl}
	ins.emit(Instruction{Op: OpBuildMacro, Macro: def}, n.Sp)
	ins.emit(Instruction{Op: OpStoreLocal, Names: []string{n.Name}}, n.Sp)
	return nil
}

func (c *compiler) compileCallBlock(ins *Instructions, n *CallBlockStmt) error {
	callerBody, err := c.compileBody(n.Body)
	if err != nil {
		return err
	}
	callerDef := &compiledMacro{name: "caller", body: callerBody, tmpl: c.tmpl}
	if err := c.compileExpr(ins, n.Call.Callee); err != nil {
		return err
	}
	for _, a := range n.Call.Args {
		if err := c.compileExpr(ins, a); err != nil {
			return err
		}
	}
	kwNames := make([]string, 0, len(n.Call.Kwargs)+1)
	for _, kw := range n.Call.Kwargs {
		if err := c.compileExpr(ins, kw.Value); err != nil {
			return err
		}
		kwNames = append(kwNames, kw.Name)
	}
	ins.emit(Instruction{Op: OpBuildMacro, Macro: callerDef}, n.Sp)
	kwNames = append(kwNames, "caller")
	ins.emit(Instruction{Op: OpBuildKwargs, Names: kwNames, Argc: len(kwNames)}, n.Sp)
	ins.emit(Instruction{Op: OpCallObject, Argc: len(n.Call.Args)}, n.Sp)
	ins.emit(Instruction{Op: OpEmit}, n.Sp)
	return nil
}

// compileCallArgsKwargs pushes positional args then a trailing kwargs Map
// value, the calling convention every call-shaped opcode (ApplyFilter,
// PerformTest, CallObject) shares.
func (c *compiler) compileCallArgsKwargs(ins *Instructions, args []Expr, kwargs []Kwarg) error {
	for _, a := range args {
		if err := c.compileExpr(ins, a); err != nil {
			return err
		}
	}
	names := make([]string, len(kwargs))
	for i, kw := range kwargs {
		if err := c.compileExpr(ins, kw.Value); err != nil {
			return err
		}
		names[i] = kw.Name
	}
	ins.emit(Instruction{Op: OpBuildKwargs, Names: names, Argc: len(names)}, Span{})
	return nil
}

func (c *compiler) compileExpr(ins *Instructions, e Expr) error {
	switch n := e.(type) {
	case *ConstExpr:
		ins.emit(Instruction{Op: OpLoadConst, Const: n.Value}, n.Sp)
	case *VarExpr:
		ins.emit(Instruction{Op: OpLookup, Names: []string{n.Name}}, n.Sp)
	case *ListExpr:
		for _, it := range n.Items {
			if err := c.compileExpr(ins, it); err != nil {
				return err
			}
		}
		ins.emit(Instruction{Op: OpBuildList, Argc: len(n.Items)}, n.Sp)
	case *MapExpr:
		for i := range n.Keys {
			if err := c.compileExpr(ins, n.Keys[i]); err != nil {
				return err
			}
			if err := c.compileExpr(ins, n.Vals[i]); err != nil {
				return err
			}
		}
		ins.emit(Instruction{Op: OpBuildMap, Argc: len(n.Keys)}, n.Sp)
	case *UnaryExpr:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		if n.Op == UnNot {
			ins.emit(Instruction{Op: OpNot}, n.Sp)
		} else {
			ins.emit(Instruction{Op: OpNeg}, n.Sp)
		}
	case *BinExpr:
		return c.compileBinExpr(ins, n)
	case *GetAttrExpr:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpGetAttr, Names: []string{n.Name}}, n.Sp)
	case *GetItemExpr:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		if err := c.compileExpr(ins, n.Index); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpGetItem}, n.Sp)
	case *SliceExpr:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		for _, part := range []Expr{n.Lo, n.Hi, n.Step} {
			if part == nil {
				ins.emit(Instruction{Op: OpLoadConst, Const: None}, n.Sp)
				continue
			}
			if err := c.compileExpr(ins, part); err != nil {
				return err
			}
		}
		ins.emit(Instruction{Op: OpSlice}, n.Sp)
	case *CallExpr:
		if n.Callee == nil {
			return newErr(KindSyntaxError, "call with no callee")
		}
		if attr, ok := n.Callee.(*GetAttrExpr); ok {
			if err := c.compileExpr(ins, attr.X); err != nil {
				return err
			}
			for _, a := range n.Args {
				if err := c.compileExpr(ins, a); err != nil {
					return err
				}
			}
			names := make([]string, len(n.Kwargs))
			for i, kw := range n.Kwargs {
				if err := c.compileExpr(ins, kw.Value); err != nil {
					return err
				}
				names[i] = kw.Name
			}
			ins.emit(Instruction{Op: OpBuildKwargs, Names: names, Argc: len(names)}, n.Sp)
			ins.emit(Instruction{Op: OpCallMethod, Names: []string{attr.Name}, Argc: len(n.Args)}, n.Sp)
			return nil
		}
		if err := c.compileExpr(ins, n.Callee); err != nil {
			return err
		}
		if err := c.compileCallArgsKwargs(ins, n.Args, n.Kwargs); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpCallObject, Argc: len(n.Args)}, n.Sp)
	case *FilterExpr:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		if err := c.compileCallArgsKwargs(ins, n.Args, n.Kwargs); err != nil {
			return err
		}
		ins.emit(Instruction{Op: OpApplyFilter, Names: []string{n.Name}, Argc: len(n.Args)}, n.Sp)
	case *TestExpr:
		if err := c.compileExpr(ins, n.X); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := c.compileExpr(ins, a); err != nil {
				return err
			}
		}
		flags := 0
		if n.Negate {
			flags = 1
		}
		ins.emit(Instruction{Op: OpPerformTest, Names: []string{n.Name}, Argc: len(n.Args), Flags: flags}, n.Sp)
	case *TernaryExpr:
		if err := c.compileExpr(ins, n.Cond); err != nil {
			return err
		}
		falseJump := ins.emit(Instruction{Op: OpJumpIfFalse}, n.Sp)
		if err := c.compileExpr(ins, n.Then); err != nil {
			return err
		}
		endJump := ins.emit(Instruction{Op: OpJump}, n.Sp)
		ins.patchTarget(falseJump, ins.len())
		if n.Else != nil {
			if err := c.compileExpr(ins, n.Else); err != nil {
				return err
			}
		} else {
			ins.emit(Instruction{Op: OpLoadConst, Const: Undefined()}, n.Sp)
		}
		ins.patchTarget(endJump, ins.len())
	default:
		return newErr(KindSyntaxError, "unsupported expression node")
	}
	return nil
}

func (c *compiler) compileBinExpr(ins *Instructions, n *BinExpr) error {
	if n.Op == BinAnd || n.Op == BinOr {
		if err := c.compileExpr(ins, n.L); err != nil {
			return err
		}
		var j int
		if n.Op == BinAnd {
			j = ins.emit(Instruction{Op: OpJumpIfFalseOrPop}, n.Sp)
		} else {
			j = ins.emit(Instruction{Op: OpJumpIfTrueOrPop}, n.Sp)
		}
		if err := c.compileExpr(ins, n.R); err != nil {
			return err
		}
		ins.patchTarget(j, ins.len())
		return nil
	}
	if err := c.compileExpr(ins, n.L); err != nil {
		return err
	}
	if err := c.compileExpr(ins, n.R); err != nil {
		return err
	}
	op, ok := binOpcode[n.Op]
	if !ok {
		return newErr(KindInvalidOperation, "unsupported binary operator")
	}
	ins.emit(Instruction{Op: op}, n.Sp)
	return nil
}

var binOpcode = map[BinOp]Opcode{
	BinAdd:      OpAdd,
	BinSub:      OpSub,
	BinMul:      OpMul,
	BinDiv:      OpDiv,
	BinFloorDiv: OpIntDiv,
	BinMod:      OpRem,
	BinPow:      OpPow,
	BinConcat:   OpStringConcat,
	BinEq:       OpEq,
	BinNe:       OpNe,
	BinLt:       OpLt,
	BinLe:       OpLte,
	BinGt:       OpGt,
	BinGe:       OpGte,
	BinIn:       OpIn,
}
