package pongo3

// Expression is a single compiled expression, evaluated in isolation from
// any template body -- grounded on minijinja's compile_expression /
// Expression::eval (its examples/eval-to-state demonstrates exactly this:
// compiling a standalone condition and running it once against a supplied
// context), which lets a host validate or compute one expression (e.g. a
// user-configured condition) without wrapping it in a throwaway template.
type Expression struct {
	env  *Environment
	name string
	ins  *Instructions
}

const exprTemplateName = "<expression>"

// CompileExpression compiles src (a single expression, no surrounding
// `{{ }}` delimiters) against env's configured syntax and undefined
// behavior. It's implemented by wrapping src in the configured variable
// delimiters and running it through the same lexer/parser/compiler as a
// one-statement template, then lifting that statement's expression out
// before the emit -- no separate expression-only lexer entry point is
// needed.
func (env *Environment) CompileExpression(src string) (*Expression, error) {
	wrapped := env.syntax.VariableStart + " " + src + " " + env.syntax.VariableEnd
	toks, err := lexTemplate(exprTemplateName, wrapped, env.syntax, env.ws)
	if err != nil {
		return nil, err
	}
	ast, err := ParseTemplate(exprTemplateName, wrapped, toks)
	if err != nil {
		return nil, err
	}
	if len(ast.Body) != 1 {
		return nil, newErr(KindSyntaxError, "CompileExpression expects exactly one expression")
	}
	emit, ok := ast.Body[0].(*EmitExprStmt)
	if !ok {
		return nil, newErr(KindSyntaxError, "CompileExpression expects a single expression, not a statement")
	}
	expr := foldConsts(emit.X)

	t := &Template{name: exprTemplateName, undefinedBehavior: env.undefinedBehavior}
	c := &compiler{tmpl: t, blocks: make(map[string]*Instructions)}
	ins := &Instructions{}
	if err := c.compileExpr(ins, expr); err != nil {
		return nil, err
	}
	return &Expression{env: env, name: exprTemplateName, ins: ins}, nil
}

// Eval runs the compiled expression once against root and returns its
// value. A Map root binds its entries as top-level names, the same way
// RenderTemplate's ctx does; any other Value is exposed under the name
// "value", so CompileExpression("value * 2").Eval(Int(21)) needs no
// wrapping context at all.
func (e *Expression) Eval(root Value) (Value, error) {
	rootFrame := newFrame(nil)
	if root.IsMap() {
		for _, k := range root.mapv.m.Keys() {
			v, _ := root.mapv.m.Get(k)
			rootFrame.set(k.String(), v)
		}
	} else if !root.IsUndefined() {
		rootFrame.set("value", root)
	}

	tmpl := &Template{name: e.name, undefinedBehavior: e.env.undefinedBehavior}
	state := newState(e.env, tmpl, rootFrame)
	if err := state.run(e.ins); err != nil {
		return Value{}, err
	}
	return state.pop(), nil
}
