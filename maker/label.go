package maker

import "github.com/chazu/jmaker/jtype"

// Label is a branch target within one method. It must be positioned with
// Here exactly once.
type Label struct {
	m  *MethodMaker
	id int
}

type labelInfo struct {
	op         *labelOp
	positioned bool
	list       *opList // list the label was positioned in
	insertTail op      // last op inserted after the label

	handler   bool
	catchType *jtype.Type

	// flow pass
	reached  bool
	assigned bitset

	// assembly
	index    int
	emitted  bool
	entry    []stackEntry
	hasEntry bool
	frame    bool
	thisInit bool
}

type splice struct {
	label       int
	chunk       *opList
	first, last op
}

// Label creates an unpositioned label.
func (m *MethodMaker) Label() *Label {
	m.begin()
	return m.newLabel()
}

func (m *MethodMaker) newLabel() *Label {
	id := len(m.labels)
	m.labels = append(m.labels, &labelInfo{op: &labelOp{label: id}})
	return &Label{m: m, id: id}
}

// Here positions the label at the current point and returns it.
func (l *Label) Here() *Label {
	m := l.m
	m.begin()
	info := m.labels[l.id]
	if info.positioned {
		failf("Here", ErrUsage, "label is already positioned")
	}
	info.positioned = true
	info.list = m.list
	m.add(info.op)
	return l
}

// Insert records code to be spliced in right after the label, which must
// already be positioned. Successive inserts at one label keep their order.
func (l *Label) Insert(body func()) {
	m := l.m
	m.begin()
	info := m.labels[l.id]
	if !info.positioned {
		fail("Insert", ErrUnpositionedLabel)
	}
	chunk := m.detached(body)
	if chunk.head != nil {
		m.splices = append(m.splices, splice{label: l.id, chunk: chunk, first: chunk.head, last: chunk.tail})
	}
}

// detached runs body with recording redirected to a fresh list.
func (m *MethodMaker) detached(body func()) *opList {
	saved, savedRel := m.list, m.rel
	chunk := &opList{}
	m.list, m.rel = chunk, nil
	defer func() {
		m.list, m.rel = saved, savedRel
	}()
	body()
	return chunk
}

// applySplices links pending inserts into place. An insert whose label
// sits inside a chunk that is itself still pending waits for a later round;
// when final, every insert must be linked.
func (m *MethodMaker) applySplices(final bool) {
	for len(m.splices) > 0 {
		pending := m.splices
		m.splices = nil
		progress := false
		for _, s := range pending {
			info := m.labels[s.label]
			if info.list.root() != &m.main {
				m.splices = append(m.splices, s)
				continue
			}
			at := op(info.op)
			if info.insertTail != nil {
				at = info.insertTail
			}
			m.main.insertAfter(at, s.first, s.last)
			s.chunk.parent = &m.main
			info.insertTail = s.last
			progress = true
		}
		if !progress {
			if final {
				internalError("splices reference labels that are never linked")
			}
			return
		}
	}
}

func (m *MethodMaker) checkLabel(op string, l *Label) {
	if l == nil {
		failf(op, ErrUsage, "nil label")
	}
	if l.m != m {
		failf(op, ErrForeignHandle, "label of %s used in %s", l.m, m)
	}
}
