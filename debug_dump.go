package pongo3

import "gopkg.in/yaml.v3"

// dumpTemplateYAML renders a Template's compiled instruction streams as
// YAML, the debug-tooling counterpart to pongo2's String()-based AST
// dumps (nodes_wrapper.go) -- a tagged union of opcodes reads more
// naturally as a sequence of small maps than as a single format string.
func dumpTemplateYAML(t *Template) (string, error) {
	dump := struct {
		Name  string                  `yaml:"name"`
		Root  []instructionDump       `yaml:"root"`
		Blocks map[string][]instructionDump `yaml:"blocks,omitempty"`
	}{
		Name: t.name,
		Root: dumpInstructions(t.root),
	}
	if len(t.blocks) > 0 {
		dump.Blocks = make(map[string][]instructionDump, len(t.blocks))
		for name, body := range t.blocks {
			dump.Blocks[name] = dumpInstructions(body)
		}
	}
	out, err := yaml.Marshal(dump)
	if err != nil {
		return "", newErr(KindBadSerialization, "failed to dump instructions").WithCause(err)
	}
	return string(out), nil
}

type instructionDump struct {
	PC     int      `yaml:"pc"`
	Op     string   `yaml:"op"`
	StrID  int      `yaml:"str_id,omitempty"`
	Const  string   `yaml:"const,omitempty"`
	Argc   int      `yaml:"argc,omitempty"`
	Target int      `yaml:"target,omitempty"`
	Names  []string `yaml:"names,omitempty"`
}

func dumpInstructions(ins *Instructions) []instructionDump {
	if ins == nil {
		return nil
	}
	out := make([]instructionDump, len(ins.Ops))
	for i, op := range ins.Ops {
		d := instructionDump{
			PC:     i,
			Op:     opcodeName(op.Op),
			StrID:  op.StrID,
			Argc:   op.Argc,
			Target: op.Target,
			Names:  op.Names,
		}
		if op.Op == OpLoadConst {
			d.Const = op.Const.ReprString()
		}
		out[i] = d
	}
	return out
}

var opcodeNames = [...]string{
	"EmitRaw", "Emit", "StoreLocal", "Lookup", "GetAttr", "GetItem", "Slice",
	"LoadConst", "BuildMap", "BuildKwargs", "BuildList", "UnpackList",
	"ListAppend", "MapSet",
	"Add", "Sub", "Mul", "Div", "IntDiv", "Rem", "Pow", "Neg", "StringConcat",
	"Eq", "Ne", "Gt", "Gte", "Lt", "Lte", "Not", "In", "Contains",
	"Jump", "JumpIfFalse", "JumpIfFalseOrPop", "JumpIfTrueOrPop",
	"PushLoop", "Iterate", "PushDidNotIterate", "PopFrame",
	"PushWith", "PopWith", "PushAutoEscape", "PopAutoEscape",
	"BeginCapture", "EndCapture", "ApplyFilter", "PerformTest",
	"CallFunction", "CallMethod", "CallObject", "LoadBlocks", "RenderParent",
	"CallBlock", "Include", "Import", "ExportLocals", "BuildMacro", "Return",
	"FastSuper", "FastRecurse", "Pop", "Dup",
}

func opcodeName(op Opcode) string {
	if int(op) >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "Unknown"
}
