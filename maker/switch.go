package maker

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// Switch branches on an int key: to labels[i] when the key equals
// cases[i], otherwise to dflt.
func (m *MethodMaker) Switch(key any, dflt *Label, cases []int, labels ...*Label) {
	m.begin()
	m.checkLabel("Switch", dflt)
	if len(cases) != len(labels) {
		failf("Switch", ErrUsage, "%d cases but %d labels", len(cases), len(labels))
	}
	keys := make([]int32, len(cases))
	targets := make([]int, len(cases))
	for i, c := range cases {
		if c < math.MinInt32 || c > math.MaxInt32 {
			failf("Switch", ErrUsage, "case %d out of int range", c)
		}
		m.checkLabel("Switch", labels[i])
		keys[i] = int32(c)
		targets[i] = labels[i].id
	}
	m.switchOn("Switch", m.operand("Switch", key), dflt.id, keys, targets)
}

func (m *MethodMaker) switchOn(op string, key operand, dflt int, keys []int32, targets []int) {
	switch len(keys) {
	case 0:
		m.branch(bytecode.OpGoto, dflt)
		return
	case 1:
		m.pushAs(op, key, jtype.Int)
		if keys[0] == 0 {
			m.branch(bytecode.OpIfeq, targets[0])
		} else {
			m.pushInt(keys[0], jtype.Int)
			m.branch(bytecode.OpIfIcmpeq, targets[0])
		}
		m.branch(bytecode.OpGoto, dflt)
		return
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case keys[a] < keys[b]:
			return -1
		case keys[a] > keys[b]:
			return 1
		}
		return 0
	})
	s := &switchOp{dflt: dflt, keys: make([]int32, len(keys)), targets: make([]int, len(keys))}
	for i, j := range order {
		s.keys[i], s.targets[i] = keys[j], targets[j]
		if i > 0 && s.keys[i] == s.keys[i-1] {
			failf(op, ErrDuplicateCase, "case %d", s.keys[i])
		}
	}
	s.table = useTable(s.keys)
	m.pushAs(op, key, jtype.Int)
	m.add(s)
}

// useTable chooses tableswitch when it encodes no larger than
// lookupswitch.
func useTable(sorted []int32) bool {
	n := int64(len(sorted))
	span := int64(sorted[n-1]) - int64(sorted[0]) + 1
	return 12+4*span <= 8+8*n
}

// switchSize is the encoded size of a switch at pc.
func switchSize(s *switchOp, pc int) int {
	pad := 3 - pc%4
	n := len(s.keys)
	if s.table {
		span := int(int64(s.keys[n-1]) - int64(s.keys[0]) + 1)
		return 1 + pad + 12 + 4*span
	}
	return 1 + pad + 8 + 8*n
}

// ---------------------------------------------------------------------------
// String switch
// ---------------------------------------------------------------------------

const switchHelperPrefix = "jmaker.helper.StringSwitch$"

// switchKey identifies a string switch helper by its cases.
type switchKey struct {
	Kind  string   `cbor:"kind"`
	Major uint16   `cbor:"major"`
	Cases []string `cbor:"cases"`
}

// SwitchString branches on a String key: to labels[i] when the key equals
// cases[i], otherwise to dflt. A null key throws NullPointerException. The
// string is mapped to a case index by a shared helper class.
func (m *MethodMaker) SwitchString(key any, dflt *Label, cases []string, labels ...*Label) {
	m.begin()
	m.checkLabel("SwitchString", dflt)
	if len(cases) != len(labels) {
		failf("SwitchString", ErrUsage, "%d cases but %d labels", len(cases), len(labels))
	}
	seen := make(map[string]bool, len(cases))
	for i, c := range cases {
		if seen[c] {
			failf("SwitchString", ErrDuplicateCase, "case %q", c)
		}
		seen[c] = true
		m.checkLabel("SwitchString", labels[i])
	}
	k := m.operand("SwitchString", key)
	if len(cases) == 0 {
		m.branch(bytecode.OpGoto, dflt.id)
		return
	}

	sorted := slices.Clone(cases)
	slices.Sort(sorted)
	helper, err := m.class.opts.Helpers.GetOrCreate(
		switchKey{Kind: "string-switch", Major: m.class.opts.Major, Cases: sorted},
		func() (*Class, error) { return buildStringSwitch(m.class.opts, sorted) })
	if err != nil {
		failf("SwitchString", ErrUsage, "string switch helper: %v", err)
	}
	m.class.addHelper(helper)

	ht := m.class.u.Class(helper.Name)
	ht.AddMethod("indexOf", jtype.Int, true, jtype.String)
	index := m.InvokeStatic(ht, "indexOf", k)

	keys := make([]int32, len(cases))
	targets := make([]int, len(cases))
	for i, c := range cases {
		keys[i] = int32(slices.Index(sorted, c))
		targets[i] = labels[i].id
	}
	m.switchOn("SwitchString", varOperand{index}, dflt.id, keys, targets)
}

// buildStringSwitch generates a class with a static indexOf(String) method
// returning the position of its argument in cases, or -1.
func buildStringSwitch(opts Options, cases []string) (*Class, error) {
	name := switchHelperPrefix + uuid.NewString()
	helperOpts := opts
	helperOpts.Universe = jtype.NewUniverse()
	helperOpts.LocalVariableTable = false

	var c *ClassMaker
	err := Try(func() {
		c = NewClass(name, helperOpts).Public().Final().Synthetic()
		mm := c.AddMethod(jtype.Int, "indexOf", jtype.String).Public().Static()
		s := mm.Param(0)
		hash := s.Invoke("hashCode")

		groups := make(map[int32][]int)
		var hashes []int32
		for i, cs := range cases {
			h := javaStringHash(cs)
			if _, ok := groups[h]; !ok {
				hashes = append(hashes, h)
			}
			groups[h] = append(groups[h], i)
		}
		miss := mm.Label()
		caseKeys := make([]int, len(hashes))
		caseLabels := make([]*Label, len(hashes))
		for i, h := range hashes {
			caseKeys[i] = int(h)
			caseLabels[i] = mm.Label()
		}
		mm.Switch(hash, miss, caseKeys, caseLabels...)
		for i, h := range hashes {
			caseLabels[i].Here()
			for _, idx := range groups[h] {
				next := mm.Label()
				mm.IfFalse(s.Invoke("equals", cases[idx]), next)
				mm.Return(idx)
				next.Here()
			}
			mm.Goto(miss)
		}
		miss.Here()
		mm.Return(-1)
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("generated string switch helper %s for %d cases", name, len(cases))
	return c.Finish()
}

// javaStringHash is String.hashCode over UTF-16 code units.
func javaStringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}
