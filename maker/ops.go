package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// ---------------------------------------------------------------------------
// Recorded operations
// ---------------------------------------------------------------------------

// op is one recorded operation. Method bodies are doubly linked lists of
// ops which the finishing passes rewrite in place before any bytes are
// produced.
type op interface {
	node() *opNode
}

type opNode struct {
	prev, next op
	visited    bool // set by the flow pass
	index      int  // position in the list, for live intervals
	pc         int  // code offset, set by layout
}

func (n *opNode) node() *opNode { return n }

// labelOp marks a label's position. It occupies no code.
type labelOp struct {
	opNode
	label int
}

// codeOp is a plain instruction with fixed operand bytes.
type codeOp struct {
	opNode
	code     bytecode.Opcode
	operands []byte
	pops     int         // operand stack entries consumed
	push     *jtype.Type // pushed result, nil for none
	pure     bool        // pushes a value without side effects
	ends     bool        // return or athrow
	alloc    bool        // new: pushes an uninitialized instance
	initCall bool        // invokespecial <init>
}

// loadOp pushes a variable.
type loadOp struct {
	opNode
	v int
}

// storeOp pops into a variable.
type storeOp struct {
	opNode
	v int
}

// incOp adds a constant to an int variable in place.
type incOp struct {
	opNode
	v      int
	amount int32
}

// branchOp is goto or a conditional branch. wide is decided by the
// relaxation pass.
type branchOp struct {
	opNode
	code     bytecode.Opcode
	target   int
	wide     bool
	assigned bitset // definitely assigned variables, for conditional branches
}

// switchOp is tableswitch or lookupswitch over sorted keys.
type switchOp struct {
	opNode
	dflt    int
	keys    []int32
	targets []int
	table   bool
}

// handlerFlowOp marks the start of a protected region so the flow pass
// sees the edge into its handler. It occupies no code.
type handlerFlowOp struct {
	opNode
	handler int
}

// lineOp sets the source line for subsequent instructions.
type lineOp struct {
	opNode
	line int
}

func isPush(o op) bool {
	switch o := o.(type) {
	case *loadOp:
		return true
	case *codeOp:
		return o.pure
	}
	return false
}

// fallsThrough reports whether execution can continue past o to the next
// op.
func fallsThrough(o op) bool {
	switch o := o.(type) {
	case *codeOp:
		return !o.ends
	case *branchOp:
		return o.code != bytecode.OpGoto
	case *switchOp:
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// opList: linked list plumbing
// ---------------------------------------------------------------------------

type opList struct {
	head, tail op
	parent     *opList // list this chunk was spliced into
}

func (l *opList) root() *opList {
	for l.parent != nil {
		l = l.parent
	}
	return l
}

func (l *opList) append(o op) {
	n := o.node()
	n.prev, n.next = l.tail, nil
	if l.tail == nil {
		l.head = o
	} else {
		l.tail.node().next = o
	}
	l.tail = o
}

func (l *opList) remove(o op) {
	n := o.node()
	if n.prev == nil {
		l.head = n.next
	} else {
		n.prev.node().next = n.next
	}
	if n.next == nil {
		l.tail = n.prev
	} else {
		n.next.node().prev = n.prev
	}
	n.prev, n.next = nil, nil
}

// insertAfter links the chain first..last after at.
func (l *opList) insertAfter(at, first, last op) {
	if first == nil {
		return
	}
	after := at.node().next
	at.node().next = first
	first.node().prev = at
	last.node().next = after
	if after == nil {
		l.tail = last
	} else {
		after.node().prev = last
	}
}

// insertBefore links a single op before at.
func (l *opList) insertBefore(at, o op) {
	if prev := at.node().prev; prev != nil {
		l.insertAfter(prev, o, o)
		return
	}
	n := o.node()
	n.prev, n.next = nil, at
	at.node().prev = o
	l.head = o
}

// replace swaps o for the chain first..last.
func (l *opList) replace(o, first, last op) {
	prev := o.node().prev
	l.remove(o)
	if prev == nil {
		if l.head == nil {
			l.head, l.tail = first, last
			return
		}
		head := l.head
		l.head = first
		first.node().prev = nil
		last.node().next = head
		head.node().prev = last
		return
	}
	l.insertAfter(prev, first, last)
}

// nextInstruction skips labels and zero-size markers, returning the next op
// that produces code, and whether label target was passed on the way.
func nextInstruction(o op, target int) (op, bool) {
	found := false
	for o = o.node().next; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *labelOp:
			if x.label == target {
				found = true
			}
		case *lineOp, *handlerFlowOp:
		default:
			return o, found
		}
	}
	return nil, found
}
