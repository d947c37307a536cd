package interp

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
)

// frame is the state of one method activation.
type frame struct {
	m      *method
	pool   *classfile.ConstantPool
	locals []any
	stack  []any
}

func (f *frame) push(v any) { f.stack = append(f.stack, v) }

func (f *frame) pop() any {
	n := len(f.stack)
	if n == 0 {
		panic(fmt.Sprintf("%s: operand stack underflow", f.m))
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v
}

func (f *frame) popN(n int) []any {
	if n > len(f.stack) {
		panic(fmt.Sprintf("%s: operand stack underflow", f.m))
	}
	out := make([]any, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (f *frame) popInt() int32 { return f.pop().(int32) }
func (f *frame) popLong() int64 { return f.pop().(int64) }
func (f *frame) popFloat() float32 { return f.pop().(float32) }
func (f *frame) popDouble() float64 { return f.pop().(float64) }

// execute runs a method with code. args include the receiver for instance
// methods.
func (vm *VM) execute(m *method, args []any) (any, error) {
	if m.code == nil {
		return nil, fmt.Errorf("interp: %s: %w: no code", m, ErrUnsupported)
	}
	if vm.depth >= vm.MaxDepth {
		return nil, vm.throw("java/lang/StackOverflowError", "")
	}
	vm.depth++
	defer func() { vm.depth-- }()

	f := &frame{
		m:      m,
		pool:   m.class.File.Pool,
		locals: make([]any, max(m.code.MaxLocals, 2*len(args))),
		stack:  make([]any, 0, m.code.MaxStack),
	}
	slot := 0
	for _, a := range args {
		f.locals[slot] = a
		slot++
		if isWide(a) {
			slot++
		}
	}

	code := m.code.Code
	r := bytecode.NewReader(code)
	for {
		if vm.MaxSteps > 0 {
			vm.steps++
			if vm.steps > vm.MaxSteps {
				panic(fmt.Errorf("interp: %s: %w", m, ErrStepLimit))
			}
		}
		if !r.HasMore() {
			return nil, fmt.Errorf("interp: %s: %w: fell off the end of the code", m, ErrBadCode)
		}
		pc := r.Position()
		op := r.ReadOpcode()
		result, done, err := vm.step(f, r, op, pc)
		if err != nil {
			var ex *Exception
			if !errors.As(err, &ex) {
				return nil, err
			}
			handler, ok := vm.findHandler(f, pc, ex.Object)
			if !ok {
				return nil, err
			}
			f.stack = append(f.stack[:0], ex.Object)
			r.Seek(handler)
			continue
		}
		if done {
			return result, nil
		}
	}
}

// findHandler searches the exception table in order.
func (vm *VM) findHandler(f *frame, pc int, ex *Object) (int, bool) {
	for _, e := range f.m.code.Exceptions {
		if pc < e.StartPC || pc >= e.EndPC {
			continue
		}
		if e.CatchType == 0 {
			return e.HandlerPC, true
		}
		name, err := f.pool.ClassNameAt(int(e.CatchType))
		if err == nil && vm.isSubclass(ex.Class, name) {
			return e.HandlerPC, true
		}
	}
	return 0, false
}

// step executes one instruction. done reports a return.
func (vm *VM) step(f *frame, r *bytecode.Reader, op bytecode.Opcode, pc int) (result any, done bool, err error) {
	branch := func(taken bool, target int) {
		if taken {
			r.Seek(target)
		}
	}

	switch {
	case op == bytecode.OpNop:
	case op == bytecode.OpAconstNull:
		f.push(nil)
	case op >= bytecode.OpIconstM1 && op <= bytecode.OpIconst5:
		f.push(int32(op) - int32(bytecode.OpIconst0))
	case op == bytecode.OpLconst0 || op == bytecode.OpLconst1:
		f.push(int64(op - bytecode.OpLconst0))
	case op >= bytecode.OpFconst0 && op <= bytecode.OpFconst2:
		f.push(float32(op - bytecode.OpFconst0))
	case op == bytecode.OpDconst0 || op == bytecode.OpDconst1:
		f.push(float64(op - bytecode.OpDconst0))
	case op == bytecode.OpBipush:
		f.push(int32(r.ReadS1()))
	case op == bytecode.OpSipush:
		f.push(int32(r.ReadS2()))
	case op == bytecode.OpLdc, op == bytecode.OpLdcW, op == bytecode.OpLdc2W:
		var index int
		if op == bytecode.OpLdc {
			index = int(r.ReadU1())
		} else {
			index = int(r.ReadU2())
		}
		v, err := f.pool.LoadableAt(index)
		if err != nil {
			return nil, false, fmt.Errorf("interp: %s: %w", f.m, err)
		}
		if ref, ok := v.(classfile.ClassRef); ok {
			obj := vm.newObject("java/lang/Class")
			obj.Native = string(ref)
			v = obj
		}
		f.push(v)

	// Locals
	case op >= bytecode.OpIload && op <= bytecode.OpAload:
		f.push(f.locals[r.ReadU1()])
	case op >= bytecode.OpIload0 && op <= bytecode.OpAload3:
		f.push(f.locals[(op-bytecode.OpIload0)%4])
	case op >= bytecode.OpIstore && op <= bytecode.OpAstore:
		f.locals[r.ReadU1()] = f.pop()
	case op >= bytecode.OpIstore0 && op <= bytecode.OpAstore3:
		f.locals[(op-bytecode.OpIstore0)%4] = f.pop()
	case op == bytecode.OpIinc:
		slot := r.ReadU1()
		f.locals[slot] = f.locals[slot].(int32) + int32(r.ReadS1())
	case op == bytecode.OpWide:
		inner := r.ReadOpcode()
		slot := r.ReadU2()
		switch {
		case inner == bytecode.OpIinc:
			f.locals[slot] = f.locals[slot].(int32) + int32(r.ReadS2())
		case inner >= bytecode.OpIload && inner <= bytecode.OpAload:
			f.push(f.locals[slot])
		case inner >= bytecode.OpIstore && inner <= bytecode.OpAstore:
			f.locals[slot] = f.pop()
		default:
			return nil, false, fmt.Errorf("interp: %s: wide %s: %w", f.m, inner, ErrBadCode)
		}

	// Arrays
	case op >= bytecode.OpIaload && op <= bytecode.OpSaload:
		index := f.popInt()
		arr, err := vm.checkArray(f.pop(), index)
		if err != nil {
			return nil, false, err
		}
		f.push(arr.Data[index])
	case op >= bytecode.OpIastore && op <= bytecode.OpSastore:
		v := f.pop()
		index := f.popInt()
		arr, err := vm.checkArray(f.pop(), index)
		if err != nil {
			return nil, false, err
		}
		if op == bytecode.OpAastore && v != nil && !vm.isSubclass(className(v), elementClass(arr.Desc)) {
			return nil, false, vm.throw("java/lang/ArrayStoreException", binaryName(className(v)))
		}
		arr.Data[index] = storeElement(arr.Desc[1], v)
	case op == bytecode.OpArraylength:
		a := f.pop()
		if a == nil {
			return nil, false, vm.throw("java/lang/NullPointerException", "Cannot read the array length because value is null")
		}
		f.push(int32(len(a.(*Array).Data)))
	case op == bytecode.OpNewarray:
		desc, ok := newarrayTypes[r.ReadU1()]
		if !ok {
			return nil, false, fmt.Errorf("interp: %s: bad newarray type: %w", f.m, ErrBadCode)
		}
		arr, err := vm.newArray("["+desc, []int32{f.popInt()})
		if err != nil {
			return nil, false, err
		}
		f.push(arr)
	case op == bytecode.OpAnewarray:
		name, err := f.pool.ClassNameAt(int(r.ReadU2()))
		if err != nil {
			return nil, false, fmt.Errorf("interp: %s: %w", f.m, err)
		}
		elem := "L" + name + ";"
		if name[0] == '[' {
			elem = name
		}
		arr, err := vm.newArray("["+elem, []int32{f.popInt()})
		if err != nil {
			return nil, false, err
		}
		f.push(arr)
	case op == bytecode.OpMultianewarray:
		desc, err := f.pool.ClassNameAt(int(r.ReadU2()))
		if err != nil {
			return nil, false, fmt.Errorf("interp: %s: %w", f.m, err)
		}
		dims := int(r.ReadU1())
		counts := make([]int32, dims)
		for i := dims - 1; i >= 0; i-- {
			counts[i] = f.popInt()
		}
		arr, err := vm.newArray(desc, counts)
		if err != nil {
			return nil, false, err
		}
		f.push(arr)

	// Stack
	case op == bytecode.OpPop:
		f.pop()
	case op == bytecode.OpPOP2:
		if !isWide(f.pop()) {
			f.pop()
		}
	case op == bytecode.OpDup:
		v := f.pop()
		f.push(v)
		f.push(v)
	case op == bytecode.OpDupX1:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		f.push(v1)
	case op == bytecode.OpDupX2:
		v1, v2 := f.pop(), f.pop()
		if isWide(v2) {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			break
		}
		v3 := f.pop()
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
	case op == bytecode.OpDUP2:
		v1 := f.pop()
		if isWide(v1) {
			f.push(v1)
			f.push(v1)
			break
		}
		v2 := f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v2)
		f.push(v1)
	case op == bytecode.OpDup2X1:
		v1, v2 := f.pop(), f.pop()
		if isWide(v1) {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			break
		}
		v3 := f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
	case op == bytecode.OpDup2X2:
		v1, v2 := f.pop(), f.pop()
		if isWide(v1) && isWide(v2) {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			break
		}
		return nil, false, fmt.Errorf("interp: %s: dup2_x2 form: %w", f.m, ErrUnsupported)
	case op == bytecode.OpSwap:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)

	// Arithmetic
	case op >= bytecode.OpIadd && op <= bytecode.OpDrem:
		if err := vm.arith(f, int(op-bytecode.OpIadd)/4, int(op-bytecode.OpIadd)%4); err != nil {
			return nil, false, err
		}
	case op >= bytecode.OpIneg && op <= bytecode.OpDneg:
		switch v := f.pop().(type) {
		case int32:
			f.push(-v)
		case int64:
			f.push(-v)
		case float32:
			f.push(-v)
		case float64:
			f.push(-v)
		}
	case op >= bytecode.OpIshl && op <= bytecode.OpLxor:
		logic(f, op)

	// Conversions
	case op >= bytecode.OpI2L && op <= bytecode.OpI2S:
		convert(f, op)

	// Comparisons
	case op == bytecode.OpLcmp:
		b, a := f.popLong(), f.popLong()
		switch {
		case a < b:
			f.push(int32(-1))
		case a > b:
			f.push(int32(1))
		default:
			f.push(int32(0))
		}
	case op == bytecode.OpFcmpl || op == bytecode.OpFcmpg:
		b, a := f.popFloat(), f.popFloat()
		nan := int32(-1)
		if op == bytecode.OpFcmpg {
			nan = 1
		}
		f.push(fcmp(float64(a), float64(b), nan))
	case op == bytecode.OpDcmpl || op == bytecode.OpDcmpg:
		b, a := f.popDouble(), f.popDouble()
		nan := int32(-1)
		if op == bytecode.OpDcmpg {
			nan = 1
		}
		f.push(fcmp(a, b, nan))

	// Branches
	case op >= bytecode.OpIfeq && op <= bytecode.OpIfle:
		target := pc + int(r.ReadS2())
		branch(compareInt(op-bytecode.OpIfeq, f.popInt(), 0), target)
	case op >= bytecode.OpIfIcmpeq && op <= bytecode.OpIfIcmple:
		target := pc + int(r.ReadS2())
		b, a := f.popInt(), f.popInt()
		branch(compareInt(op-bytecode.OpIfIcmpeq, a, b), target)
	case op == bytecode.OpIfAcmpeq || op == bytecode.OpIfAcmpne:
		target := pc + int(r.ReadS2())
		b, a := f.pop(), f.pop()
		branch((a == b) == (op == bytecode.OpIfAcmpeq), target)
	case op == bytecode.OpIfnull || op == bytecode.OpIfnonnull:
		target := pc + int(r.ReadS2())
		branch((f.pop() == nil) == (op == bytecode.OpIfnull), target)
	case op == bytecode.OpGoto:
		r.Seek(pc + int(r.ReadS2()))
	case op == bytecode.OpGotoW:
		r.Seek(pc + int(r.ReadS4()))
	case op == bytecode.OpTableswitch || op == bytecode.OpLookupswitch:
		sw := r.ReadSwitch(op, pc)
		key := f.popInt()
		target := sw.Default
		for i, k := range sw.Keys {
			if k == key {
				target = sw.Targets[i]
				break
			}
		}
		r.Seek(target)

	// Returns
	case op >= bytecode.OpIreturn && op <= bytecode.OpAreturn:
		return f.pop(), true, nil
	case op == bytecode.OpReturn:
		return nil, true, nil

	// Fields
	case op >= bytecode.OpGetstatic && op <= bytecode.OpPutfield:
		if err := vm.field(f, op, int(r.ReadU2())); err != nil {
			return nil, false, err
		}

	// Invocation
	case op >= bytecode.OpInvokevirtual && op <= bytecode.OpInvokeinterface:
		index := int(r.ReadU2())
		if op == bytecode.OpInvokeinterface {
			r.ReadU2()
		}
		if err := vm.call(f, op, index); err != nil {
			return nil, false, err
		}
	case op == bytecode.OpInvokedynamic:
		index := int(r.ReadU2())
		r.ReadU2()
		if err := vm.invokeDynamic(f, index); err != nil {
			return nil, false, err
		}

	// Objects
	case op == bytecode.OpNew:
		name, err := f.pool.ClassNameAt(int(r.ReadU2()))
		if err != nil {
			return nil, false, fmt.Errorf("interp: %s: %w", f.m, err)
		}
		if err := vm.initClass(name); err != nil {
			return nil, false, err
		}
		f.push(vm.newObject(name))
	case op == bytecode.OpCheckcast || op == bytecode.OpInstanceof:
		name, err := f.pool.ClassNameAt(int(r.ReadU2()))
		if err != nil {
			return nil, false, fmt.Errorf("interp: %s: %w", f.m, err)
		}
		v := f.pop()
		if op == bytecode.OpInstanceof {
			if vm.isInstance(v, name) {
				f.push(int32(1))
			} else {
				f.push(int32(0))
			}
			break
		}
		if v != nil && !vm.isInstance(v, name) {
			return nil, false, vm.throw("java/lang/ClassCastException",
				"class "+binaryName(className(v))+" cannot be cast to class "+binaryName(name))
		}
		f.push(v)
	case op == bytecode.OpAthrow:
		v := f.pop()
		ex, ok := v.(*Object)
		if !ok {
			return nil, false, vm.throw("java/lang/NullPointerException", "Cannot throw exception because value is null")
		}
		return nil, false, &Exception{Object: ex}
	case op == bytecode.OpMonitorenter || op == bytecode.OpMonitorexit:
		if f.pop() == nil {
			return nil, false, vm.throw("java/lang/NullPointerException", "Cannot enter synchronized block because value is null")
		}

	default:
		return nil, false, fmt.Errorf("interp: %s: %s at %d: %w", f.m, op, pc, ErrUnsupported)
	}
	return nil, false, nil
}

// compareInt evaluates condition c in ifeq order: eq ne lt ge gt le.
func compareInt(c bytecode.Opcode, a, b int32) bool {
	switch c {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

// arith applies add sub mul div or rem (group 0 to 4) to int, long, float
// or double operands (kind 0 to 3).
func (vm *VM) arith(f *frame, group, kind int) error {
	divZero := func() error { return vm.throw("java/lang/ArithmeticException", "/ by zero") }
	switch kind {
	case 0:
		b, a := f.popInt(), f.popInt()
		var v int32
		switch group {
		case 0:
			v = a + b
		case 1:
			v = a - b
		case 2:
			v = a * b
		case 3:
			if b == 0 {
				return divZero()
			}
			v = a / b
		case 4:
			if b == 0 {
				return divZero()
			}
			v = a % b
		}
		f.push(v)
	case 1:
		b, a := f.popLong(), f.popLong()
		var v int64
		switch group {
		case 0:
			v = a + b
		case 1:
			v = a - b
		case 2:
			v = a * b
		case 3:
			if b == 0 {
				return divZero()
			}
			v = a / b
		case 4:
			if b == 0 {
				return divZero()
			}
			v = a % b
		}
		f.push(v)
	case 2:
		b, a := f.popFloat(), f.popFloat()
		var v float32
		switch group {
		case 0:
			v = a + b
		case 1:
			v = a - b
		case 2:
			v = a * b
		case 3:
			v = a / b
		case 4:
			v = float32(math.Mod(float64(a), float64(b)))
		}
		f.push(v)
	case 3:
		b, a := f.popDouble(), f.popDouble()
		var v float64
		switch group {
		case 0:
			v = a + b
		case 1:
			v = a - b
		case 2:
			v = a * b
		case 3:
			v = a / b
		case 4:
			v = math.Mod(a, b)
		}
		f.push(v)
	}
	return nil
}

// logic handles shifts and bitwise operations.
func logic(f *frame, op bytecode.Opcode) {
	switch op {
	case bytecode.OpIshl, bytecode.OpIshr, bytecode.OpIushr:
		n := uint32(f.popInt()) & 31
		a := f.popInt()
		switch op {
		case bytecode.OpIshl:
			f.push(a << n)
		case bytecode.OpIshr:
			f.push(a >> n)
		default:
			f.push(int32(uint32(a) >> n))
		}
	case bytecode.OpLshl, bytecode.OpLshr, bytecode.OpLushr:
		n := uint32(f.popInt()) & 63
		a := f.popLong()
		switch op {
		case bytecode.OpLshl:
			f.push(a << n)
		case bytecode.OpLshr:
			f.push(a >> n)
		default:
			f.push(int64(uint64(a) >> n))
		}
	case bytecode.OpIand, bytecode.OpIor, bytecode.OpIxor:
		b, a := f.popInt(), f.popInt()
		switch op {
		case bytecode.OpIand:
			f.push(a & b)
		case bytecode.OpIor:
			f.push(a | b)
		default:
			f.push(a ^ b)
		}
	default:
		b, a := f.popLong(), f.popLong()
		switch op {
		case bytecode.OpLand:
			f.push(a & b)
		case bytecode.OpLor:
			f.push(a | b)
		default:
			f.push(a ^ b)
		}
	}
}

func convert(f *frame, op bytecode.Opcode) {
	switch op {
	case bytecode.OpI2L:
		f.push(int64(f.popInt()))
	case bytecode.OpI2F:
		f.push(float32(f.popInt()))
	case bytecode.OpI2D:
		f.push(float64(f.popInt()))
	case bytecode.OpL2I:
		f.push(int32(f.popLong()))
	case bytecode.OpL2F:
		f.push(float32(f.popLong()))
	case bytecode.OpL2D:
		f.push(float64(f.popLong()))
	case bytecode.OpF2I:
		f.push(f2i(float64(f.popFloat())))
	case bytecode.OpF2L:
		f.push(f2l(float64(f.popFloat())))
	case bytecode.OpF2D:
		f.push(float64(f.popFloat()))
	case bytecode.OpD2I:
		f.push(f2i(f.popDouble()))
	case bytecode.OpD2L:
		f.push(f2l(f.popDouble()))
	case bytecode.OpD2F:
		f.push(float32(f.popDouble()))
	case bytecode.OpI2B:
		f.push(int32(int8(f.popInt())))
	case bytecode.OpI2C:
		f.push(int32(uint16(f.popInt())))
	case bytecode.OpI2S:
		f.push(int32(int16(f.popInt())))
	}
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

var newarrayTypes = map[byte]string{
	4: "Z", 5: "C", 6: "F", 7: "D", 8: "B", 9: "S", 10: "I", 11: "J",
}

func (vm *VM) newArray(desc string, counts []int32) (*Array, error) {
	n := counts[0]
	if n < 0 {
		return nil, vm.throw("java/lang/NegativeArraySizeException", fmt.Sprint(n))
	}
	arr := &Array{Desc: desc, Data: make([]any, n)}
	elem := desc[1:]
	for i := range arr.Data {
		if len(counts) > 1 {
			sub, err := vm.newArray(elem, counts[1:])
			if err != nil {
				return nil, err
			}
			arr.Data[i] = sub
			continue
		}
		arr.Data[i] = zero(elem)
	}
	return arr, nil
}

func (vm *VM) checkArray(v any, index int32) (*Array, error) {
	if v == nil {
		return nil, vm.throw("java/lang/NullPointerException", "Cannot load from array because value is null")
	}
	arr := v.(*Array)
	if index < 0 || int(index) >= len(arr.Data) {
		return nil, vm.throw("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, len(arr.Data)))
	}
	return arr, nil
}

func elementClass(desc string) string {
	elem := desc[1:]
	if elem[0] == 'L' {
		return elem[1 : len(elem)-1]
	}
	return elem
}

// storeElement narrows int values stored into small primitive arrays.
func storeElement(elem byte, v any) any {
	i, ok := v.(int32)
	if !ok {
		return v
	}
	switch elem {
	case 'Z':
		return i & 1
	case 'B':
		return int32(int8(i))
	case 'C':
		return int32(uint16(i))
	case 'S':
		return int32(int16(i))
	}
	return i
}

// ---------------------------------------------------------------------------
// Fields and calls
// ---------------------------------------------------------------------------

func (vm *VM) field(f *frame, op bytecode.Opcode, index int) error {
	ref, err := f.pool.MemberRefAt(index)
	if err != nil {
		return fmt.Errorf("interp: %s: %w", f.m, err)
	}
	switch op {
	case bytecode.OpGetstatic, bytecode.OpPutstatic:
		if ref.Owner == "java/lang/System" && (ref.Name == "out" || ref.Name == "err") {
			if op == bytecode.OpPutstatic {
				return fmt.Errorf("interp: System.%s is read only: %w", ref.Name, ErrUnsupported)
			}
			f.push(vm.out)
			return nil
		}
		if err := vm.initClass(ref.Owner); err != nil {
			return err
		}
		holder := vm.staticHolder(ref.Owner, ref.Name)
		if holder == nil {
			return fmt.Errorf("interp: %s.%s: %w", binaryName(ref.Owner), ref.Name, ErrNoField)
		}
		if op == bytecode.OpGetstatic {
			f.push(holder.statics[ref.Name])
		} else {
			holder.statics[ref.Name] = storeElement(ref.Descriptor[0], f.pop())
		}
	case bytecode.OpGetfield:
		obj, ok := f.pop().(*Object)
		if !ok {
			return vm.throw("java/lang/NullPointerException", "Cannot read field \""+ref.Name+"\" because value is null")
		}
		v, ok := obj.Fields[ref.Name]
		if !ok {
			v = zero(ref.Descriptor)
		}
		f.push(v)
	case bytecode.OpPutfield:
		v := f.pop()
		obj, ok := f.pop().(*Object)
		if !ok {
			return vm.throw("java/lang/NullPointerException", "Cannot assign field \""+ref.Name+"\" because value is null")
		}
		obj.Fields[ref.Name] = storeElement(ref.Descriptor[0], v)
	}
	return nil
}

func (vm *VM) call(f *frame, op bytecode.Opcode, index int) error {
	ref, err := f.pool.MemberRefAt(index)
	if err != nil {
		return fmt.Errorf("interp: %s: %w", f.m, err)
	}
	params, ret, ok := parseDescriptor(ref.Descriptor)
	if !ok {
		return fmt.Errorf("interp: %s: bad descriptor %q: %w", f.m, ref.Descriptor, ErrBadCode)
	}
	n := len(params)
	if op != bytecode.OpInvokestatic {
		n++
	}
	args := f.popN(n)
	var result any
	switch op {
	case bytecode.OpInvokestatic:
		result, err = vm.invoke(ref.Owner, ref.Name, ref.Descriptor, args, false)
	case bytecode.OpInvokespecial:
		if args[0] == nil {
			return vm.throw("java/lang/NullPointerException", "")
		}
		result, err = vm.invoke(ref.Owner, ref.Name, ref.Descriptor, args, false)
	default:
		result, err = vm.invoke(ref.Owner, ref.Name, ref.Descriptor, args, true)
	}
	if err != nil {
		return err
	}
	if ret != "V" {
		f.push(result)
	}
	return nil
}
