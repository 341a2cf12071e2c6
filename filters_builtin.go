package pongo3

/* Filters grounded on pongo2's filters_builtin.go, generalized to the
   Value/OrderedMap model and the state-aware FilterFunc signature:
   the operand is a Value (not a *Value), extra arguments arrive as
   already-evaluated positional args plus a kwargs map, and a filter may
   consult state (e.g. the active auto-escape mode) when it needs to.

   Filters intentionally not carried over, same reasoning as pongo2:

   get_static_prefix, static (web-framework specific)
   pprint, phone2numeric (python/django-specific, no general use here)
*/

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func registerBuiltinFilters(env *Environment) {
	env.AddFilter("default", filterDefault)
	env.AddFilter("upper", filterUpper)
	env.AddFilter("lower", filterLower)
	env.AddFilter("capitalize", filterCapitalize)
	env.AddFilter("title", filterTitle)
	env.AddFilter("trim", filterTrim)
	env.AddFilter("length", filterLength)
	env.AddFilter("count", filterLength)
	env.AddFilter("join", filterJoin)
	env.AddFilter("first", filterFirst)
	env.AddFilter("last", filterLast)
	env.AddFilter("reverse", filterReverse)
	env.AddFilter("sort", filterSort)
	env.AddFilter("unique", filterUnique)
	env.AddFilter("list", filterList)
	env.AddFilter("string", filterString)
	env.AddFilter("int", filterInt)
	env.AddFilter("float", filterFloatFilter)
	env.AddFilter("abs", filterAbs)
	env.AddFilter("round", filterRound)
	env.AddFilter("min", filterMin)
	env.AddFilter("max", filterMax)
	env.AddFilter("sum", filterSum)
	env.AddFilter("replace", filterReplace)
	env.AddFilter("truncate", filterTruncate)
	env.AddFilter("items", filterItems)
	env.AddFilter("attr", filterAttr)
	env.AddFilter("map", filterMap)
	env.AddFilter("select", filterSelect)
	env.AddFilter("reject", filterReject)
	env.AddFilter("batch", filterBatch)
	env.AddFilter("slice", filterSliceFilter)
	env.AddFilter("safe", filterSafe)
	env.AddFilter("escape", filterEscape)
	env.AddFilter("e", filterEscape)
	env.AddFilter("tojson", filterTojson)
	env.AddFilter("indent", filterIndent)
	env.AddFilter("wordcount", filterWordcount)
	env.AddFilter("urlencode", filterUrlencode)
}

func filterArg(args []Value, i int, def Value) Value {
	if i < len(args) {
		return args[i]
	}
	return def
}

func filterDefault(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	boolean := false
	if kwargs != nil {
		if v, ok := kwargs.GetStr("boolean"); ok {
			boolean = v.IsTruthy()
		}
	}
	missing := value.IsUndefined()
	if boolean {
		missing = missing || !value.IsTruthy()
	}
	if !missing {
		return value, nil
	}
	return filterArg(args, 0, String("")), nil
}

func filterUpper(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return String(strings.ToUpper(value.String())), nil
}

func filterLower(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return String(strings.ToLower(value.String())), nil
}

func filterCapitalize(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	s := value.String()
	if s == "" {
		return String(""), nil
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return String(string(r)), nil
}

func filterTitle(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return String(cases.Title(language.Und).String(value.String())), nil
}

func filterTrim(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	cutset := " \t\n\r"
	if len(args) > 0 {
		cutset = args[0].String()
	}
	return String(strings.Trim(value.String(), cutset)), nil
}

func filterLength(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return Int(int64(value.Len())), nil
}

func filterJoin(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	sep := ""
	if len(args) > 0 {
		sep = args[0].String()
	}
	attr := ""
	if len(args) > 1 {
		attr = args[1].String()
	}
	parts := make([]string, len(items))
	for i, it := range items {
		if attr != "" {
			v, err := getAttr(state, it, attr)
			if err != nil {
				return Value{}, err
			}
			parts[i] = v.String()
			continue
		}
		parts[i] = it.String()
	}
	return String(strings.Join(parts, sep)), nil
}

func filterFirst(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	if len(items) == 0 {
		return Undefined(), nil
	}
	return items[0], nil
}

func filterLast(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	if len(items) == 0 {
		return Undefined(), nil
	}
	return items[len(items)-1], nil
}

func filterReverse(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return Seq(out), nil
}

func filterSort(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	reverse := false
	attr := ""
	if kwargs != nil {
		if v, ok := kwargs.GetStr("reverse"); ok {
			reverse = v.IsTruthy()
		}
		if v, ok := kwargs.GetStr("attribute"); ok {
			attr = v.String()
		}
	}
	keyed := items
	if attr != "" {
		keyed = make([]Value, len(items))
		copy(keyed, items)
		sort.SliceStable(keyed, func(i, j int) bool {
			a, _ := getAttr(state, keyed[i], attr)
			b, _ := getAttr(state, keyed[j], attr)
			c, _ := a.Compare(b)
			return c < 0
		})
	} else {
		keyed = sortValues(items)
	}
	if reverse {
		for i, j := 0, len(keyed)-1; i < j; i, j = i+1, j-1 {
			keyed[i], keyed[j] = keyed[j], keyed[i]
		}
	}
	return Seq(keyed), nil
}

func filterUnique(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	var out []Value
	for _, it := range items {
		dup := false
		for _, seen := range out {
			if it.EqualValueTo(seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return Seq(out), nil
}

func filterList(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	return Seq(items), nil
}

func filterString(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return String(value.String()), nil
}

func filterInt(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if value.IsNumber() {
		return Int(value.Int64()), nil
	}
	i, err := strconv.ParseInt(strings.TrimSpace(value.String()), 10, 64)
	if err != nil {
		return filterArg(args, 0, Int(0)), nil
	}
	return Int(i), nil
}

func filterFloatFilter(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if value.IsNumber() {
		return Float(value.Float64()), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
	if err != nil {
		return filterArg(args, 0, Float(0)), nil
	}
	return Float(f), nil
}

func filterAbs(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if value.IsFloat() {
		f := value.Float64()
		if f < 0 {
			f = -f
		}
		return Float(f), nil
	}
	i := value.Int64()
	if i < 0 {
		i = -i
	}
	return Int(i), nil
}

func filterRound(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	prec := 0
	if len(args) > 0 {
		prec = int(args[0].Int64())
	}
	mult := 1.0
	for i := 0; i < prec; i++ {
		mult *= 10
	}
	f := value.Float64()*mult + 0.5
	return Float(float64(int64(f)) / mult), nil
}

func filterMin(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return filterExtreme(value, true)
}

func filterMax(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return filterExtreme(value, false)
}

func filterExtreme(value Value, wantMin bool) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	if len(items) == 0 {
		return Undefined(), nil
	}
	best := items[0]
	for _, it := range items[1:] {
		c, ok := it.Compare(best)
		if !ok {
			continue
		}
		if (wantMin && c < 0) || (!wantMin && c > 0) {
			best = it
		}
	}
	return best, nil
}

func filterSum(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	attr := ""
	if kwargs != nil {
		if v, ok := kwargs.GetStr("attribute"); ok {
			attr = v.String()
		}
	}
	start := filterArg(args, 0, Int(0))
	total := start.Float64()
	isFloat := start.IsFloat()
	for _, it := range items {
		v := it
		if attr != "" {
			v, err = getAttr(state, it, attr)
			if err != nil {
				return Value{}, err
			}
		}
		if v.IsFloat() {
			isFloat = true
		}
		total += v.Float64()
	}
	if isFloat {
		return Float(total), nil
	}
	return Int(int64(total)), nil
}

func filterReplace(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if len(args) < 2 {
		return Value{}, newErr(KindMissingArgument, "replace requires two arguments")
	}
	n := -1
	if len(args) > 2 {
		n = int(args[2].Int64())
	}
	return String(strings.Replace(value.String(), args[0].String(), args[1].String(), n)), nil
}

func filterTruncate(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	length := 255
	if len(args) > 0 {
		length = int(args[0].Int64())
	}
	s := value.String()
	if len([]rune(s)) <= length {
		return String(s), nil
	}
	end := "..."
	if kwargs != nil {
		if v, ok := kwargs.GetStr("end"); ok {
			end = v.String()
		}
	}
	r := []rune(s)
	cut := length - len([]rune(end))
	if cut < 0 {
		cut = 0
	}
	return String(string(r[:cut]) + end), nil
}

func filterItems(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if !value.IsMap() {
		return Seq(nil), nil
	}
	keys := value.mapv.m.Keys()
	out := make([]Value, len(keys))
	for i, k := range keys {
		v, _ := value.mapv.m.Get(k)
		out[i] = Seq([]Value{k, v})
	}
	return Seq(out), nil
}

func filterAttr(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if len(args) < 1 {
		return Value{}, newErr(KindMissingArgument, "attr requires a name argument")
	}
	return getAttr(state, value, args[0].String())
}

func filterMap(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	var attr, filterName string
	if kwargs != nil {
		if v, ok := kwargs.GetStr("attribute"); ok {
			attr = v.String()
		}
	}
	if len(args) > 0 {
		filterName = args[0].String()
	}
	out := make([]Value, len(items))
	for i, it := range items {
		v := it
		if attr != "" {
			v, err = getAttr(state, it, attr)
			if err != nil {
				return Value{}, err
			}
		}
		if filterName != "" {
			fn, ok := state.env.filters[filterName]
			if !ok {
				return Value{}, newErr(KindUnknownFilter, "unknown filter: "+filterName).WithLocation(state.tmpl.name, Span{})
			}
			v, err = fn(state, v, nil, nil)
			if err != nil {
				return Value{}, err
			}
		}
		out[i] = v
	}
	return Seq(out), nil
}

func filterSelect(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return filterSelectReject(state, value, args, true)
}

func filterReject(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return filterSelectReject(state, value, args, false)
}

func filterSelectReject(state *State, value Value, args []Value, want bool) (Value, error) {
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		var out []Value
		for _, it := range items {
			if it.IsTruthy() == want {
				out = append(out, it)
			}
		}
		return Seq(out), nil
	}
	testName := args[0].String()
	test, ok := state.env.tests[testName]
	if !ok {
		return Value{}, newErr(KindUnknownTest, "unknown test: "+testName)
	}
	var out []Value
	for _, it := range items {
		ok, err := test(state, it, args[1:])
		if err != nil {
			return Value{}, err
		}
		if ok == want {
			out = append(out, it)
		}
	}
	return Seq(out), nil
}

func filterBatch(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if len(args) < 1 {
		return Value{}, newErr(KindMissingArgument, "batch requires a size argument")
	}
	size := int(args[0].Int64())
	if size <= 0 {
		return Value{}, newErr(KindInvalidOperation, "batch size must be positive")
	}
	var fill Value
	hasFill := len(args) > 1
	if hasFill {
		fill = args[1]
	}
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	var out []Value
	for i := 0; i < len(items); i += size {
		end := i + size
		var batch []Value
		if end > len(items) {
			batch = append(batch, items[i:]...)
			if hasFill {
				for len(batch) < size {
					batch = append(batch, fill)
				}
			}
		} else {
			batch = items[i:end]
		}
		out = append(out, Seq(batch))
	}
	return Seq(out), nil
}

func filterSliceFilter(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if len(args) < 1 {
		return Value{}, newErr(KindMissingArgument, "slice requires a count argument")
	}
	n := int(args[0].Int64())
	if n <= 0 {
		return Value{}, newErr(KindInvalidOperation, "slice count must be positive")
	}
	items, err := value.AsSlice()
	if err != nil {
		return Value{}, err
	}
	total := len(items)
	base := total / n
	extra := total % n
	out := make([]Value, 0, n)
	idx := 0
	for i := 0; i < n; i++ {
		count := base
		if i < extra {
			count++
		}
		out = append(out, Seq(items[idx:idx+count]))
		idx += count
	}
	return Seq(out), nil
}

func filterSafe(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return SafeString(value.String()), nil
}

func filterEscape(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	if value.IsSafe() {
		return value, nil
	}
	return SafeString(escapeHTML(value.String())), nil
}

func filterTojson(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	s, err := escapeValue(AutoEscapeJSON, value)
	if err != nil {
		return Value{}, err
	}
	return SafeString(s), nil
}

func filterIndent(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	width := 4
	if len(args) > 0 {
		width = int(args[0].Int64())
	}
	first := false
	if kwargs != nil {
		if v, ok := kwargs.GetStr("first"); ok {
			first = v.IsTruthy()
		}
	}
	pad := strings.Repeat(" ", width)
	lines := strings.Split(value.String(), "\n")
	for i := range lines {
		if i == 0 && !first {
			continue
		}
		if lines[i] == "" {
			continue
		}
		lines[i] = pad + lines[i]
	}
	return String(strings.Join(lines, "\n")), nil
}

func filterWordcount(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	return Int(int64(len(strings.Fields(value.String())))), nil
}

func filterUrlencode(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error) {
	var sb strings.Builder
	for _, r := range value.String() {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-' || r == '~' {
			sb.WriteRune(r)
			continue
		}
		sb.WriteString(fmt.Sprintf("%%%02X", r))
	}
	return String(sb.String()), nil
}
