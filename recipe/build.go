package recipe

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"

	"github.com/chazu/jmaker/jtype"
	"github.com/chazu/jmaker/maker"
)

var log = commonlog.GetLogger("jmaker.recipe")

// Build generates the class described by the recipe.
func (rc *Recipe) Build(opts maker.Options) (*maker.Class, error) {
	b := &builder{rc: rc}
	var inner error
	if err := maker.Try(func() { inner = b.build(opts) }); err != nil {
		return nil, fmt.Errorf("recipe: %s: %w", rc.Class, err)
	}
	if inner != nil {
		return nil, inner
	}
	cls, err := b.c.Finish()
	if err != nil {
		return nil, fmt.Errorf("recipe: %s: %w", rc.Class, err)
	}
	log.Debugf("built %s from %s: %d bytes, %d helpers", cls.Name, rc.source(), len(cls.Bytes), len(cls.Helpers))
	return cls, nil
}

func (rc *Recipe) source() string {
	if rc.Path == "" {
		return "<recipe>"
	}
	return rc.Path
}

type buildError struct{ err error }

type loop struct {
	top, end *maker.Label
}

type builder struct {
	rc      *Recipe
	c       *maker.ClassMaker
	m       *maker.MethodMaker
	method  *Method
	scopes  []map[string]*maker.Variable
	loops   []loop
	methods []*maker.MethodMaker
}

func (b *builder) failf(n *yaml.Node, format string, args ...any) {
	where := b.rc.Class
	if b.method != nil {
		where += "." + b.method.Name
	}
	if n != nil && n.Line > 0 {
		where += fmt.Sprintf(" (line %d)", n.Line)
	}
	panic(&buildError{fmt.Errorf("recipe: %s: %s: %w", where, fmt.Sprintf(format, args...), ErrInvalid)})
}

func (b *builder) build(opts maker.Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*buildError)
			if !ok {
				panic(r)
			}
			err = e.err
		}
	}()

	rc := b.rc
	b.c = maker.NewClass(rc.Class, opts)
	for _, mod := range rc.Modifiers {
		switch mod {
		case "public":
			b.c.Public()
		case "final":
			b.c.Final()
		case "abstract":
			b.c.Abstract()
		case "interface":
			b.c.Interface()
		case "synthetic":
			b.c.Synthetic()
		default:
			b.failf(nil, "unknown class modifier %q", mod)
		}
	}
	if rc.Extends != "" {
		b.c.Extend(rc.Extends)
	}
	for _, i := range rc.Implements {
		b.c.Implement(i)
	}
	if rc.SourceFile != "" {
		b.c.SourceFile(rc.SourceFile)
	}

	for i := range rc.Fields {
		b.declareField(&rc.Fields[i])
	}
	// Declare every method before building bodies so that methods may
	// call each other in any order.
	for i := range rc.Methods {
		b.methods = append(b.methods, b.declareMethod(&rc.Methods[i]))
	}
	for i := range rc.Methods {
		b.buildBody(&rc.Methods[i], b.methods[i])
	}
	return nil
}

func (b *builder) declareField(f *Field) {
	fm := b.c.AddField(f.Type, f.Name)
	for _, mod := range f.Modifiers {
		switch mod {
		case "public":
			fm.Public()
		case "private":
			fm.Private()
		case "protected":
			fm.Protected()
		case "static":
			fm.Static()
		case "final":
			fm.Final()
		case "volatile":
			fm.Volatile()
		case "transient":
			fm.Transient()
		default:
			b.failf(nil, "field %s: unknown modifier %q", f.Name, mod)
		}
	}
	if f.Init.Kind != 0 {
		if f.Init.Kind != yaml.ScalarNode {
			b.failf(&f.Init, "field %s: initial value must be a constant", f.Name)
		}
		fm.Init(b.literal(&f.Init, true))
	}
}

func (b *builder) declareMethod(md *Method) *maker.MethodMaker {
	params := make([]any, len(md.Params))
	for i, p := range md.Params {
		params[i] = p.Type
	}
	var m *maker.MethodMaker
	switch md.Name {
	case "<init>":
		m = b.c.AddConstructor(params...)
	case "<clinit>":
		if len(params) > 0 {
			b.failf(nil, "static initializer takes no parameters")
		}
		m = b.c.AddClinit()
	default:
		ret := md.Returns
		if ret == "" {
			ret = "void"
		}
		m = b.c.AddMethod(ret, md.Name, params...)
	}
	for _, mod := range md.Modifiers {
		switch mod {
		case "public":
			m.Public()
		case "private":
			m.Private()
		case "protected":
			m.Protected()
		case "static":
			m.Static()
		case "final":
			m.Final()
		case "synchronized":
			m.Synchronized()
		case "varargs":
			m.Varargs()
		case "abstract":
			m.Abstract()
		default:
			b.failf(nil, "method %s: unknown modifier %q", md.Name, mod)
		}
	}
	for _, t := range md.Throws {
		m.Throws(t)
	}
	return m
}

func (b *builder) buildBody(md *Method, m *maker.MethodMaker) {
	b.method, b.m = md, m
	defer func() { b.method, b.m = nil, nil }()
	if slices.Contains(md.Modifiers, "abstract") || slices.Contains(b.rc.Modifiers, "interface") {
		if len(md.Body) > 0 {
			b.failf(nil, "abstract method has a body")
		}
		return
	}

	b.scopes = []map[string]*maker.Variable{{}}
	b.loops = nil
	for i, p := range md.Params {
		if _, dup := b.scopes[0][p.Name]; dup {
			b.failf(nil, "duplicate parameter %s", p.Name)
		}
		b.scopes[0][p.Name] = m.Param(i).Name(p.Name)
	}
	b.block(md.Body)
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (b *builder) lookup(name string) (*maker.Variable, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (b *builder) scoped(body func()) {
	b.scopes = append(b.scopes, map[string]*maker.Variable{})
	defer func() { b.scopes = b.scopes[:len(b.scopes)-1] }()
	body()
}

func (b *builder) declare(n *yaml.Node, name string, v *maker.Variable) {
	if _, ok := b.lookup(name); ok {
		b.failf(n, "%s is already declared", name)
	}
	b.scopes[len(b.scopes)-1][name] = v
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// fields splits a mapping node into its first key and all values by key.
func (b *builder) fields(n *yaml.Node) (string, map[string]*yaml.Node) {
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		b.failf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, dup := out[key]; dup {
			b.failf(n.Content[i], "duplicate key %s", key)
		}
		out[key] = n.Content[i+1]
	}
	return n.Content[0].Value, out
}

func (b *builder) allow(n *yaml.Node, f map[string]*yaml.Node, keys ...string) {
	for k := range f {
		if !slices.Contains(keys, k) {
			b.failf(n, "unexpected key %s", k)
		}
	}
}

func (b *builder) list(n *yaml.Node) []*yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		b.failf(n, "expected a list")
	}
	return n.Content
}

func (b *builder) block(stmts []yaml.Node) {
	for i := range stmts {
		b.stmt(&stmts[i])
	}
}

func (b *builder) blockNodes(stmts []*yaml.Node) {
	b.scoped(func() {
		for _, s := range stmts {
			b.stmt(s)
		}
	})
}

func (b *builder) stmt(n *yaml.Node) {
	m := b.m
	kind, f := b.fields(n)
	if n.Line > 0 && n.Line <= math.MaxUint16 {
		m.LineNum(n.Line)
	}
	switch kind {
	case "var":
		b.allow(n, f, "var", "type", "value")
		name := b.name(f["var"])
		if f["type"] == nil {
			b.failf(n, "var %s needs a type", name)
		}
		v := m.Var(b.name(f["type"])).Name(name)
		if f["value"] != nil {
			v.Set(b.expr(f["value"]))
		}
		b.declare(n, name, v)

	case "set":
		b.allow(n, f, "set", "value")
		if f["value"] == nil {
			b.failf(n, "set needs a value")
		}
		value := b.expr(f["value"])
		switch t := b.target(f["set"]).(type) {
		case *maker.Variable:
			t.Set(value)
		case *maker.Field:
			t.Set(value)
		}

	case "aset":
		b.allow(n, f, "aset", "index", "value")
		if f["index"] == nil || f["value"] == nil {
			b.failf(n, "aset needs an index and a value")
		}
		b.variable(f["aset"]).Aset(b.expr(f["index"]), b.expr(f["value"]))

	case "inc":
		b.allow(n, f, "inc", "by")
		var by any = 1
		if f["by"] != nil {
			by = b.expr(f["by"])
		}
		switch t := b.target(f["inc"]).(type) {
		case *maker.Variable:
			t.Inc(by)
		case *maker.Field:
			t.Inc(by)
		}

	case "if":
		b.allow(n, f, "if", "then", "else")
		then, els, end := m.Label(), m.Label(), m.Label()
		b.cond(f["if"], then)
		m.Goto(els)
		then.Here()
		b.blockNodes(b.list(f["then"]))
		m.Goto(end)
		els.Here()
		b.blockNodes(b.list(f["else"]))
		end.Here()

	case "while":
		b.allow(n, f, "while", "do")
		top, body, end := m.Label().Here(), m.Label(), m.Label()
		b.cond(f["while"], body)
		m.Goto(end)
		body.Here()
		b.loops = append(b.loops, loop{top: top, end: end})
		b.blockNodes(b.list(f["do"]))
		b.loops = b.loops[:len(b.loops)-1]
		m.Goto(top)
		end.Here()

	case "break", "continue":
		b.allow(n, f, kind)
		if len(b.loops) == 0 {
			b.failf(n, "%s outside a loop", kind)
		}
		l := b.loops[len(b.loops)-1]
		if kind == "break" {
			m.Goto(l.end)
		} else {
			m.Goto(l.top)
		}

	case "switch":
		b.allow(n, f, "switch", "cases", "default")
		b.switchStmt(n, f)

	case "print":
		b.allow(n, f, "print")
		out := m.StaticField("java.lang.System", "out").Get()
		if v := f["print"]; v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
			out.Invoke("println")
		} else {
			out.Invoke("println", b.expr(v))
		}

	case "return":
		b.allow(n, f, "return")
		if m.ReturnType() == jtype.Void {
			if v := f["return"]; !(v.Kind == yaml.ScalarNode && v.Tag == "!!null") {
				b.failf(n, "void method returns a value")
			}
			m.Return()
		} else {
			m.Return(b.expr(f["return"]))
		}

	case "throw":
		b.allow(n, f, "throw")
		m.Throw(b.expr(f["throw"]))

	case "try":
		b.allow(n, f, "try", "catch", "finally")
		b.tryStmt(n, f)

	case "sync":
		b.allow(n, f, "sync", "do")
		lock := b.expr(f["sync"])
		m.Sync(lock, func() { b.blockNodes(b.list(f["do"])) })

	case "super", "this":
		b.allow(n, f, kind)
		args := b.exprs(f[kind])
		if kind == "super" {
			m.InvokeSuperConstructor(args...)
		} else {
			m.InvokeThisConstructor(args...)
		}

	case "expr":
		b.allow(n, f, "expr")
		b.expr(f["expr"])

	case "nop":
		m.Nop()

	default:
		b.failf(n, "unknown statement %s", kind)
	}
}

func (b *builder) switchStmt(n *yaml.Node, f map[string]*yaml.Node) {
	m := b.m
	key := b.expr(f["switch"])
	cases := f["cases"]
	if cases == nil || cases.Kind != yaml.MappingNode {
		b.failf(n, "switch needs a cases mapping")
	}
	dflt, end := m.Label(), m.Label()
	var labels []*maker.Label
	var bodies []*yaml.Node
	var ints []int
	var strs []string
	isString := typeOf(key) == jtype.String
	for i := 0; i+1 < len(cases.Content); i += 2 {
		k := cases.Content[i]
		if isString {
			strs = append(strs, k.Value)
		} else {
			v, err := strconv.ParseInt(k.Value, 0, 32)
			if err != nil {
				b.failf(k, "case %q is not an int", k.Value)
			}
			ints = append(ints, int(v))
		}
		labels = append(labels, m.Label())
		bodies = append(bodies, cases.Content[i+1])
	}
	if isString {
		m.SwitchString(key, dflt, strs, labels...)
	} else {
		m.Switch(key, dflt, ints, labels...)
	}
	for i, l := range labels {
		l.Here()
		b.blockNodes(b.list(bodies[i]))
		m.Goto(end)
	}
	dflt.Here()
	b.blockNodes(b.list(f["default"]))
	end.Here()
}

func (b *builder) tryStmt(n *yaml.Node, f map[string]*yaml.Node) {
	m := b.m
	catches := b.list(f["catch"])
	if len(catches) == 0 && f["finally"] == nil {
		b.failf(n, "try needs catch or finally")
	}
	start := m.Label().Here()
	b.blockNodes(b.list(f["try"]))
	if len(catches) > 0 {
		end := m.Label().Here()
		cont := m.Label()
		m.Goto(cont)
		for _, c := range catches {
			_, cf := b.fields(c)
			b.allow(c, cf, "catch", "as", "do")
			var types []any
			for _, t := range b.names(cf["catch"]) {
				types = append(types, t)
			}
			ex := m.Catch(start, end, types...)
			b.scoped(func() {
				if cf["as"] != nil {
					b.declare(c, b.name(cf["as"]), ex)
				}
				for _, s := range b.list(cf["do"]) {
					b.stmt(s)
				}
			})
			m.Goto(cont)
		}
		cont.Here()
	}
	if fin := f["finally"]; fin != nil {
		m.Finally(start, func() { b.blockNodes(b.list(fin)) })
	}
}

// cond branches to target when the condition holds.
func (b *builder) cond(n *yaml.Node, target *maker.Label) {
	m := b.m
	if n == nil {
		b.failf(nil, "missing condition")
	}
	if n.Kind == yaml.MappingNode {
		op, f := b.fields(n)
		if branch, ok := map[string]func(x, y any, l *maker.Label){
			"eq": m.IfEq, "ne": m.IfNe, "lt": m.IfLt, "ge": m.IfGe, "gt": m.IfGt, "le": m.IfLe,
		}[op]; ok {
			b.allow(n, f, op)
			x, y := b.pair(f[op])
			branch(x, y, target)
			return
		}
	}
	m.IfTrue(b.expr(n), target)
}

// target resolves an assignable name: a variable or a field.
func (b *builder) target(n *yaml.Node) any {
	if n.Kind == yaml.ScalarNode {
		name := n.Value
		if v, ok := b.lookup(name); ok {
			return v
		}
		return b.m.Field(name)
	}
	if fld, ok := b.expr(n).(*maker.Field); ok {
		return fld
	}
	b.failf(n, "not assignable")
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (b *builder) name(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		b.failf(n, "expected a name")
	}
	return n.Value
}

func (b *builder) names(n *yaml.Node) []string {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		return []string{b.name(n)}
	}
	var out []string
	for _, x := range b.list(n) {
		out = append(out, b.name(x))
	}
	return out
}

func (b *builder) exprs(n *yaml.Node) []any {
	if n == nil {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return []any{b.expr(n)}
	}
	out := make([]any, len(n.Content))
	for i, x := range n.Content {
		out[i] = b.expr(x)
	}
	return out
}

func (b *builder) pair(n *yaml.Node) (any, any) {
	if n == nil || n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		b.failf(n, "expected two operands")
	}
	return b.expr(n.Content[0]), b.expr(n.Content[1])
}

// variable evaluates an expression into a variable, copying constants and
// fields into temporaries.
func (b *builder) variable(n *yaml.Node) *maker.Variable {
	return b.toVariable(n, b.expr(n))
}

func (b *builder) toVariable(n *yaml.Node, x any) *maker.Variable {
	switch v := x.(type) {
	case *maker.Variable:
		return v
	case *maker.Field:
		return v.Get()
	case nil:
		b.failf(n, "null is not a value here")
	}
	_, t, err := jtype.NormalizeConstant(x)
	if err != nil {
		b.failf(n, "%v", err)
	}
	tmp := b.m.Var(t)
	tmp.Set(x)
	return tmp
}

func typeOf(x any) *jtype.Type {
	switch v := x.(type) {
	case *maker.Variable:
		return v.Type()
	case *maker.Field:
		return v.Type()
	}
	_, t, _ := jtype.NormalizeConstant(x)
	return t
}

var binaryOps = map[string]func(v *maker.Variable, x any) *maker.Variable{
	"add":  (*maker.Variable).Add,
	"sub":  (*maker.Variable).Sub,
	"mul":  (*maker.Variable).Mul,
	"div":  (*maker.Variable).Div,
	"rem":  (*maker.Variable).Rem,
	"and":  (*maker.Variable).And,
	"or":   (*maker.Variable).Or,
	"xor":  (*maker.Variable).Xor,
	"shl":  (*maker.Variable).Shl,
	"shr":  (*maker.Variable).Shr,
	"ushr": (*maker.Variable).Ushr,
	"eq":   (*maker.Variable).Eq,
	"ne":   (*maker.Variable).Ne,
	"lt":   (*maker.Variable).Lt,
	"ge":   (*maker.Variable).Ge,
	"gt":   (*maker.Variable).Gt,
	"le":   (*maker.Variable).Le,
}

var unaryOps = map[string]func(v *maker.Variable) *maker.Variable{
	"neg":    (*maker.Variable).Neg,
	"com":    (*maker.Variable).Com,
	"not":    (*maker.Variable).Not,
	"length": (*maker.Variable).Alength,
}

// expr evaluates an expression to a *maker.Variable, a *maker.Field or a
// constant.
func (b *builder) expr(n *yaml.Node) any {
	if n == nil {
		b.failf(nil, "missing expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return b.scalar(n)
	case yaml.MappingNode:
	default:
		b.failf(n, "expected a value or an operation")
	}

	m := b.m
	op, f := b.fields(n)
	if fn, ok := binaryOps[op]; ok {
		b.allow(n, f, op)
		args := f[op]
		if args.Kind != yaml.SequenceNode || len(args.Content) != 2 {
			b.failf(n, "%s needs two operands", op)
		}
		return fn(b.variable(args.Content[0]), b.expr(args.Content[1]))
	}
	if fn, ok := unaryOps[op]; ok {
		b.allow(n, f, op)
		return fn(b.variable(f[op]))
	}

	switch op {
	case "concat":
		b.allow(n, f, op)
		return m.Concat(b.exprs(f[op])...)

	case "cast":
		b.allow(n, f, "cast", "to")
		return b.variable(f["cast"]).Cast(b.name(f["to"]))

	case "instanceof":
		b.allow(n, f, "instanceof", "type")
		return b.variable(f["instanceof"]).InstanceOf(b.name(f["type"]))

	case "index":
		b.allow(n, f, op)
		arr, i := b.pair(f[op])
		return b.toVariable(f[op], arr).Aget(i)

	case "new":
		b.allow(n, f, "new", "args")
		return m.New(b.name(f["new"]), b.exprs(f["args"])...)

	case "newarray":
		b.allow(n, f, "newarray", "size")
		return m.NewArray(b.name(f["newarray"]), b.exprs(f["size"])...)

	case "call":
		b.allow(n, f, "call", "on", "class", "args")
		name := b.name(f["call"])
		args := b.exprs(f["args"])
		switch {
		case f["on"] != nil && f["class"] != nil:
			b.failf(n, "call takes either on or class")
		case f["class"] != nil:
			return m.InvokeStatic(b.name(f["class"]), name, args...)
		case f["on"] != nil:
			return b.variable(f["on"]).Invoke(name, args...)
		}
		return m.Invoke(name, args...)

	case "field":
		b.allow(n, f, "field", "of", "class")
		name := b.name(f["field"])
		switch {
		case f["class"] != nil:
			return m.StaticField(b.name(f["class"]), name)
		case f["of"] != nil:
			return b.variable(f["of"]).Field(name)
		}
		return m.Field(name)
	}
	b.failf(n, "unknown operation %s", op)
	return nil
}

func (b *builder) scalar(n *yaml.Node) any {
	if n.Tag == "!!str" && n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return n.Value
	}
	if n.Tag == "!!str" {
		if n.Value == "this" {
			return b.m.This()
		}
		if v, ok := b.lookup(n.Value); ok {
			return v
		}
	}
	return b.literal(n, false)
}

// literal parses a constant scalar. Plain strings are accepted as string
// constants only when plainStrings is set.
func (b *builder) literal(n *yaml.Node, plainStrings bool) any {
	switch n.Tag {
	case "!!null":
		return nil
	case "!!bool":
		v, err := strconv.ParseBool(strings.ToLower(n.Value))
		if err != nil {
			b.failf(n, "bad boolean %q", n.Value)
		}
		return v
	case "!!int":
		v, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			b.failf(n, "bad integer %q", n.Value)
		}
		return int(v)
	case "!!float":
		return b.float(n, n.Value)
	}

	s := n.Value
	if quoted := n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0; quoted || plainStrings {
		if v, ok := suffixed(s); ok && !quoted {
			return v
		}
		return s
	}
	if v, ok := suffixed(s); ok {
		return v
	}
	if b.m != nil {
		return b.m.Field(s)
	}
	b.failf(n, "unknown name %s", s)
	return nil
}

func (b *builder) float(n *yaml.Node, s string) float64 {
	switch strings.ToLower(s) {
	case ".nan":
		return math.NaN()
	case ".inf", "+.inf":
		return math.Inf(1)
	case "-.inf":
		return math.Inf(-1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		b.failf(n, "bad number %q", s)
	}
	return v
}

// suffixed parses numbers written with a Java type suffix: 5L, 1.5f, 2d,
// 7b (byte), 7s (short) and 'c' style chars as c'x'.
func suffixed(s string) (any, bool) {
	if len(s) < 2 {
		return nil, false
	}
	if strings.HasPrefix(s, "c'") && strings.HasSuffix(s, "'") {
		r := []rune(s[2 : len(s)-1])
		if len(r) == 1 && r[0] <= math.MaxUint16 {
			return uint16(r[0]), true
		}
		return nil, false
	}
	body, suffix := s[:len(s)-1], strings.ToLower(s[len(s)-1:])
	switch suffix {
	case "l":
		if v, err := strconv.ParseInt(body, 0, 64); err == nil {
			return v, true
		}
	case "b":
		if v, err := strconv.ParseInt(body, 10, 8); err == nil {
			return int8(v), true
		}
	case "s":
		if v, err := strconv.ParseInt(body, 10, 16); err == nil {
			return int16(v), true
		}
	case "f":
		if v, err := strconv.ParseFloat(body, 32); err == nil {
			return float32(v), true
		}
	case "d":
		if v, err := strconv.ParseFloat(body, 64); err == nil {
			return v, true
		}
	}
	return nil, false
}
