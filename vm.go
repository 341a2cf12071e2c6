package pongo3

// run executes a flat instruction stream against the State's current
// frame/stack, writing text into the current output sink. It is the single
// interpreter loop every render, include, block call and macro invocation
// eventually funnels through.
func (s *State) run(ins *Instructions) error {
	return s.runRange(ins, 0, len(ins.Ops))
}

// runRange executes instructions [start, end) of ins. A plain run() covers
// the whole stream; recursive {% for %} re-entry via loop(...) reuses this
// to replay just the loop body's instructions (whose jump Targets are
// absolute positions in the same ins, so they remain valid).
func (s *State) runRange(ins *Instructions, start, end int) error {
	pc := start
	for pc < end {
		instr := &ins.Ops[pc]
		if err := s.consumeFuel(1); err != nil {
			return err.(*Error).WithLocation(s.tmpl.name, ins.Spans[pc])
		}
		next, err := s.step(ins, instr, pc)
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.WithLocation(s.tmpl.name, ins.Spans[pc])
			}
			return err
		}
		pc = next
	}
	return nil
}

// runMacroBody executes a compiled macro (or {% call %} body) in its own
// frame and evaluation stack, returning the text it rendered as a safe
// string -- macro output has already passed through auto-escaping once
// during the capture and must not be escaped a second time at the call
// site.
func (s *State) runMacroBody(def *compiledMacro, fr *frame) (Value, error) {
	savedFrame, savedStack, savedTmpl := s.frame, s.stack, s.tmpl
	s.frame, s.stack, s.tmpl = fr, nil, def.tmpl

	if err := s.enterRecursion(); err != nil {
		s.frame, s.stack, s.tmpl = savedFrame, savedStack, savedTmpl
		return Value{}, err
	}
	s.out.pushCapture()
	err := s.run(def.body)
	captured := s.out.popCapture()
	s.leaveRecursion()

	s.frame, s.stack, s.tmpl = savedFrame, savedStack, savedTmpl
	if err != nil {
		return Value{}, err
	}
	return SafeString(captured), nil
}

// step executes a single instruction and returns the next program counter.
func (s *State) step(ins *Instructions, instr *Instruction, pc int) (int, error) {
	switch instr.Op {
	case OpEmitRaw:
		s.out.writeString(instr.Const.String())

	case OpEmit:
		v, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		out, err := s.env.formatter(s.currentAutoEscape(), v, s.env.pycompat)
		if err != nil {
			return 0, err
		}
		s.out.writeString(out)

	case OpStoreLocal:
		if len(instr.Names) == 1 {
			s.frame.set(instr.Names[0], s.pop())
			break
		}
		v := s.pop()
		items, err := v.AsSlice()
		if err != nil {
			return 0, err
		}
		if len(items) != len(instr.Names) {
			return 0, newErr(KindCannotUnpack, "cannot unpack value into the given number of targets")
		}
		for i, name := range instr.Names {
			s.frame.set(name, items[i])
		}

	case OpLookup:
		v, err := s.lookupName(instr.Names[0])
		if err != nil {
			return 0, err
		}
		s.push(v)

	case OpGetAttr:
		// Deliberately not forced: a Chainable-mode undefined must be able
		// to propagate through a whole `a.b.c` chain, raising only when the
		// final result is actually consumed (see forceConcrete's doc).
		x := s.pop()
		v, err := getAttr(s, x, instr.Names[0])
		if err != nil {
			return 0, err
		}
		s.push(v)

	case OpGetItem:
		idx, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		x := s.pop()
		v, err := getItem(s, x, idx)
		if err != nil {
			return 0, err
		}
		s.push(v)

	case OpSlice:
		step, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		hi, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		lo, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		x := s.pop()
		v, err := sliceValue(x, lo, hi, step)
		if err != nil {
			return 0, err
		}
		s.push(v)

	case OpLoadConst:
		s.push(instr.Const)

	case OpBuildList:
		s.push(Seq(s.popN(instr.Argc)))

	case OpBuildMap:
		kv := s.popN(instr.Argc * 2)
		m := NewOrderedMap()
		for i := 0; i < len(kv); i += 2 {
			m.Set(kv[i], kv[i+1])
		}
		s.push(Map(m))

	case OpBuildKwargs:
		vals := s.popN(len(instr.Names))
		m := NewOrderedMap()
		for i, name := range instr.Names {
			m.Set(String(name), vals[i])
		}
		s.push(Map(m))

	case OpNeg:
		x, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		v, err := valueNeg(x)
		if err != nil {
			return 0, err
		}
		s.push(v)

	case OpNot:
		x, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		s.push(Bool(!x.IsTruthy()))

	case OpAdd, OpSub, OpMul, OpDiv, OpIntDiv, OpRem, OpPow, OpStringConcat,
		OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn:
		r, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		l, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		v, err := evalBinOpcode(instr.Op, l, r)
		if err != nil {
			return 0, err
		}
		s.push(v)

	case OpJump:
		return instr.Target, nil

	case OpJumpIfFalse:
		v, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		if !v.IsTruthy() {
			return instr.Target, nil
		}

	case OpJumpIfFalseOrPop:
		v, err := forceConcrete(s.top())
		if err != nil {
			return 0, err
		}
		if !v.IsTruthy() {
			return instr.Target, nil
		}
		s.pop()

	case OpJumpIfTrueOrPop:
		v, err := forceConcrete(s.top())
		if err != nil {
			return 0, err
		}
		if v.IsTruthy() {
			return instr.Target, nil
		}
		s.pop()

	case OpPushLoop:
		return s.execPushLoop(ins, instr, pc)

	case OpIterate:
		return s.execIterate(instr, pc)

	case OpPopFrame:
		s.frame = s.frame.parent
		s.loops = s.loops[:len(s.loops)-1]

	case OpPushWith:
		vals := s.popN(len(instr.Names))
		fr := newFrame(s.frame)
		for i, name := range instr.Names {
			fr.set(name, vals[i])
		}
		s.frame = fr

	case OpPopWith:
		s.frame = s.frame.parent

	case OpPushAutoEscape:
		s.autoescape = append(s.autoescape, AutoEscape(instr.Const.Int64()))

	case OpPopAutoEscape:
		s.autoescape = s.autoescape[:len(s.autoescape)-1]

	case OpBeginCapture:
		s.out.pushCapture()

	case OpEndCapture:
		// Both {% set %}...{% endset %} and {% filter %}...{% endfilter %}
		// capture text that has already passed through the active
		// auto-escape mode once (every OpEmit inside the body escaped as it
		// wrote); marking it safe here keeps a later {{ x }} or the
		// filter-block's own trailing OpEmit from escaping it a second time.
		s.push(SafeString(s.out.popCapture()))

	case OpApplyFilter:
		return pc + 1, s.execApplyFilter(instr)

	case OpPerformTest:
		return pc + 1, s.execPerformTest(instr)

	case OpCallObject:
		return pc + 1, s.execCallObject(instr)

	case OpCallMethod:
		return pc + 1, s.execCallMethod(instr)

	case OpCallBlock:
		if err := s.callBlock(instr.Names[0]); err != nil {
			return 0, err
		}

	case OpInclude:
		nameVal, err := forceConcrete(s.pop())
		if err != nil {
			return 0, err
		}
		ignoreMissing := instr.Flags&1 != 0
		withContext := instr.Flags&2 != 0
		if err := s.runIncluded(nameVal.String(), withContext, ignoreMissing); err != nil {
			return 0, err
		}

	case OpImport:
		return pc + 1, s.execImport(instr)

	case OpBuildMacro:
		s.push(newMacroValue(s, instr.Macro, s.frame))

	case OpPop:
		s.pop()

	case OpDup:
		s.push(s.top())

	default:
		return 0, newErr(KindInvalidOperation, "unimplemented opcode")
	}
	return pc + 1, nil
}

func evalBinOpcode(op Opcode, l, r Value) (Value, error) {
	switch op {
	case OpAdd:
		return valueAdd(l, r)
	case OpSub:
		return valueSub(l, r)
	case OpMul:
		return valueMul(l, r)
	case OpDiv:
		return valueDiv(l, r)
	case OpIntDiv:
		return valueFloorDiv(l, r)
	case OpRem:
		return valueMod(l, r)
	case OpPow:
		return valuePow(l, r)
	case OpStringConcat:
		return Concat(l, r), nil
	case OpEq:
		return Bool(l.EqualValueTo(r)), nil
	case OpNe:
		return Bool(!l.EqualValueTo(r)), nil
	case OpGt, OpGte, OpLt, OpLte:
		c, ok := l.Compare(r)
		if !ok {
			return Value{}, newErr(KindInvalidOperation, "cannot compare "+l.TypeName()+" and "+r.TypeName())
		}
		switch op {
		case OpGt:
			return Bool(c > 0), nil
		case OpGte:
			return Bool(c >= 0), nil
		case OpLt:
			return Bool(c < 0), nil
		default:
			return Bool(c <= 0), nil
		}
	case OpIn:
		ok, err := r.Contains(l)
		if err != nil {
			return Value{}, err
		}
		return Bool(ok), nil
	default:
		return Value{}, newErr(KindInvalidOperation, "unsupported binary opcode")
	}
}

// execPushLoop pops the iterable, materializes it into a loopController and
// an inner frame, and leaves the "did we iterate at all" decision to the
// paired OpIterate: PushLoop's Target is the else/end-of-loop landing spot
// taken only when the collection turns out empty.
//
// For `recursive` loops it also wires up loopController.recurseFn, which
// lets `loop(children)` inside the body replay the same [iterate, popFrame]
// instruction range against a nested collection. Those Target fields are
// absolute positions within ins, so replaying the range directly (rather
// than copying it into a new Instructions) keeps every jump valid.
func (s *State) execPushLoop(ins *Instructions, instr *Instruction, pc int) (int, error) {
	iterV, err := forceConcrete(s.pop())
	if err != nil {
		return 0, err
	}
	items, err := iterV.AsSlice()
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return instr.Target, nil
	}
	depth := 1
	if len(s.loops) > 0 {
		depth = s.loops[len(s.loops)-1].depth + 1
	}
	iteratePC := pc + 1
	endPC := ins.Ops[iteratePC].Target + 1

	lc := newLoopController(items, depth, nil)
	if instr.LoopFlags.Recursive {
		lc.recurseFn = func(newItems []Value, _ int) (string, error) {
			return s.runRecursiveLoop(ins, iteratePC, endPC, lc.depth, newItems)
		}
	}
	s.loops = append(s.loops, lc)
	s.frame = newFrame(s.frame)
	return pc + 1, nil
}

// runRecursiveLoop re-enters a `{% for ... recursive %}` body for a nested
// collection reached via `loop(children)`, producing the rendered text as a
// standalone string rather than writing into the caller's output position
// directly -- the call site (loop(...)) is itself an expression.
func (s *State) runRecursiveLoop(ins *Instructions, iteratePC, endPC, parentDepth int, items []Value) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	if err := s.enterRecursion(); err != nil {
		return "", err
	}
	defer s.leaveRecursion()

	savedFrame, savedStack, savedLoops := s.frame, s.stack, s.loops
	lc := newLoopController(items, parentDepth+1, nil)
	lc.recurseFn = func(newItems []Value, _ int) (string, error) {
		return s.runRecursiveLoop(ins, iteratePC, endPC, parentDepth+1, newItems)
	}
	s.loops = append(s.loops, lc)
	s.frame = newFrame(savedFrame)
	s.stack = nil
	s.out.pushCapture()

	err := s.runRange(ins, iteratePC, endPC)

	captured := s.out.popCapture()
	s.frame, s.stack, s.loops = savedFrame, savedStack, savedLoops
	if err != nil {
		return "", err
	}
	return captured, nil
}

// execIterate advances the innermost loop: on exhaustion it jumps to
// Target (just past the paired OpJump that loops back), otherwise it binds
// the loop target name(s) and exposes `loop` when requested.
func (s *State) execIterate(instr *Instruction, pc int) (int, error) {
	lc := s.loops[len(s.loops)-1]
	v, ok := lc.advance()
	if !ok {
		return instr.Target, nil
	}
	if instr.LoopFlags.TupleUnpack {
		items, err := v.AsSlice()
		if err != nil {
			return 0, err
		}
		if len(items) != len(instr.Names) {
			return 0, newErr(KindCannotUnpack, "cannot unpack loop value into the given number of targets")
		}
		for i, name := range instr.Names {
			s.frame.set(name, items[i])
		}
	} else if len(instr.Names) == 1 {
		s.frame.set(instr.Names[0], v)
	}
	if instr.LoopFlags.WithLoopVar {
		s.frame.set("loop", lc.asObject())
	}
	return pc + 1, nil
}

func (s *State) execApplyFilter(instr *Instruction) error {
	kwargsV := s.pop()
	args := s.popN(instr.Argc)
	x, err := forceConcrete(s.pop())
	if err != nil {
		return err
	}
	fn, ok := s.env.filters[instr.Names[0]]
	if !ok {
		return newErr(KindUnknownFilter, "unknown filter: "+instr.Names[0])
	}
	v, err := fn(s, x, args, kwargsV.mapv.m)
	if err != nil {
		return err
	}
	s.push(v)
	return nil
}

func (s *State) execPerformTest(instr *Instruction) error {
	args := s.popN(instr.Argc)
	x, err := forceConcrete(s.pop())
	if err != nil {
		return err
	}
	fn, ok := s.env.tests[instr.Names[0]]
	if !ok {
		return newErr(KindUnknownTest, "unknown test: "+instr.Names[0])
	}
	ok2, err := fn(s, x, args)
	if err != nil {
		return err
	}
	if instr.Flags&1 != 0 {
		ok2 = !ok2
	}
	s.push(Bool(ok2))
	return nil
}

func (s *State) execCallObject(instr *Instruction) error {
	kwargsV := s.pop()
	args := s.popN(instr.Argc)
	callee, err := forceConcrete(s.pop())
	if err != nil {
		return err
	}
	if !callee.IsObject() {
		return newErr(KindUnknownMethod, "value of type "+callee.TypeName()+" is not callable")
	}
	v, err := callee.obj.Call(args, kwargsV.mapv.m)
	if err != nil {
		return err
	}
	s.push(v)
	return nil
}

func (s *State) execCallMethod(instr *Instruction) error {
	kwargsV := s.pop()
	args := s.popN(instr.Argc)
	recv, err := forceConcrete(s.pop())
	if err != nil {
		return err
	}
	name := instr.Names[0]
	v, err := callMethod(s, recv, name, args, kwargsV.mapv.m)
	if err != nil {
		return err
	}
	s.push(v)
	return nil
}

func (s *State) execImport(instr *Instruction) error {
	srcV, err := forceConcrete(s.pop())
	if err != nil {
		return err
	}
	withContext := instr.Flags&2 != 0
	fromImport := instr.Flags&4 != 0
	fr, err := s.runImport(srcV.String(), withContext)
	if err != nil {
		return err
	}
	if !fromImport {
		s.frame.set(instr.Names[0], FromObject(&namespaceObject{fr: fr}))
		return nil
	}
	for _, encoded := range instr.Names {
		name, alias := splitNameAlias(encoded)
		v, ok := fr.get(name)
		if !ok {
			v, err = resolveUndefined(s.env.undefinedBehavior, name, false)
			if err != nil {
				return err
			}
		}
		s.frame.set(alias, v)
	}
	return nil
}

func splitNameAlias(s string) (name, alias string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:]
		}
	}
	return s, s
}
