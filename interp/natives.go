package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/chazu/jmaker/classfile"
)

// nativeFunc implements a library method. args include the receiver for
// instance methods.
type nativeFunc func(vm *VM, args []any) (any, error)

// natives maps owner.name+descriptor to library implementations.
var natives = map[string]nativeFunc{}

func native(key string, fn nativeFunc) { natives[key] = fn }

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func utf16Units(s string) []uint16 { return utf16.Encode([]rune(s)) }

// boxes lists each wrapper class with its primitive descriptor.
var boxes = map[string]string{
	"java/lang/Boolean":   "Z",
	"java/lang/Byte":      "B",
	"java/lang/Character": "C",
	"java/lang/Short":     "S",
	"java/lang/Integer":   "I",
	"java/lang/Long":      "J",
	"java/lang/Float":     "F",
	"java/lang/Double":    "D",
}

func (vm *VM) box(class string, v any) *Object {
	obj := vm.newObject(class)
	obj.Native = v
	return obj
}

// asFloat64 widens any numeric primitive.
func asFloat64(v any) float64 {
	switch x := v.(type) {
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case int64:
		return x
	case float32:
		return f2l(float64(x))
	case float64:
		return f2l(x)
	}
	return 0
}

func init() {
	// Object
	native("java/lang/Object.<init>()V", func(vm *VM, args []any) (any, error) { return nil, nil })
	native("java/lang/Object.hashCode()I", func(vm *VM, args []any) (any, error) {
		if o, ok := args[0].(*Object); ok {
			return o.id, nil
		}
		return int32(0), nil
	})
	native("java/lang/Object.equals(Ljava/lang/Object;)Z", func(vm *VM, args []any) (any, error) {
		return boolValue(args[0] == args[1]), nil
	})
	native("java/lang/Object.toString()Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		h, err := vm.invoke("java/lang/Object", "hashCode", "()I", args[:1], true)
		if err != nil {
			return nil, err
		}
		return binaryName(className(args[0])) + "@" + strconv.FormatUint(uint64(uint32(h.(int32))), 16), nil
	})

	// String
	native("java/lang/String.length()I", func(vm *VM, args []any) (any, error) {
		return int32(len(utf16Units(args[0].(string)))), nil
	})
	native("java/lang/String.isEmpty()Z", func(vm *VM, args []any) (any, error) {
		return boolValue(args[0].(string) == ""), nil
	})
	native("java/lang/String.charAt(I)C", func(vm *VM, args []any) (any, error) {
		units := utf16Units(args[0].(string))
		i := args[1].(int32)
		if i < 0 || int(i) >= len(units) {
			return nil, vm.throw("java/lang/StringIndexOutOfBoundsException",
				fmt.Sprintf("index %d, length %d", i, len(units)))
		}
		return int32(units[i]), nil
	})
	native("java/lang/String.hashCode()I", func(vm *VM, args []any) (any, error) {
		return javaHash(args[0].(string)), nil
	})
	native("java/lang/String.equals(Ljava/lang/Object;)Z", func(vm *VM, args []any) (any, error) {
		s, ok := args[1].(string)
		return boolValue(ok && s == args[0].(string)), nil
	})
	native("java/lang/String.compareTo(Ljava/lang/String;)I", func(vm *VM, args []any) (any, error) {
		if args[1] == nil {
			return nil, vm.throw("java/lang/NullPointerException", "")
		}
		a, b := utf16Units(args[0].(string)), utf16Units(args[1].(string))
		for i := 0; i < len(a) && i < len(b); i++ {
			if a[i] != b[i] {
				return int32(a[i]) - int32(b[i]), nil
			}
		}
		return int32(len(a) - len(b)), nil
	})
	native("java/lang/String.concat(Ljava/lang/String;)Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		if args[1] == nil {
			return nil, vm.throw("java/lang/NullPointerException", "")
		}
		return args[0].(string) + args[1].(string), nil
	})
	native("java/lang/String.toString()Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		return args[0], nil
	})
	native("java/lang/CharSequence.length()I", natives["java/lang/String.length()I"])
	native("java/lang/String.valueOf(Ljava/lang/Object;)Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		return vm.stringOf(args[0])
	})
	for _, d := range "ZCIJFD" {
		desc := byte(d)
		native("java/lang/String.valueOf("+string(d)+")Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
			return formatPrimitive(args[0], desc), nil
		})
	}

	// StringBuilder
	builderOf := func(v any) *strings.Builder {
		return v.(*Object).Native.(*strings.Builder)
	}
	native("java/lang/StringBuilder.<init>()V", func(vm *VM, args []any) (any, error) {
		args[0].(*Object).Native = &strings.Builder{}
		return nil, nil
	})
	native("java/lang/StringBuilder.<init>(Ljava/lang/String;)V", func(vm *VM, args []any) (any, error) {
		b := &strings.Builder{}
		s, err := vm.stringOf(args[1])
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		args[0].(*Object).Native = b
		return nil, nil
	})
	for _, d := range []string{"Ljava/lang/String;", "Ljava/lang/Object;", "Ljava/lang/CharSequence;"} {
		native("java/lang/StringBuilder.append("+d+")Ljava/lang/StringBuilder;", func(vm *VM, args []any) (any, error) {
			s, err := vm.stringOf(args[1])
			if err != nil {
				return nil, err
			}
			builderOf(args[0]).WriteString(s)
			return args[0], nil
		})
	}
	for _, d := range "ZCIJFD" {
		desc := byte(d)
		native("java/lang/StringBuilder.append("+string(d)+")Ljava/lang/StringBuilder;", func(vm *VM, args []any) (any, error) {
			builderOf(args[0]).WriteString(formatPrimitive(args[1], desc))
			return args[0], nil
		})
	}
	native("java/lang/StringBuilder.toString()Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		return builderOf(args[0]).String(), nil
	})
	native("java/lang/StringBuilder.length()I", func(vm *VM, args []any) (any, error) {
		return int32(len(utf16Units(builderOf(args[0]).String()))), nil
	})

	// Boxes
	for class, desc := range boxes {
		prim := desc[0]
		native(class+".valueOf("+desc+")L"+class+";", func(vm *VM, args []any) (any, error) {
			return vm.box(class, args[0]), nil
		})
		native(class+".toString()Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
			return formatPrimitive(args[0].(*Object).Native, prim), nil
		})
		native(class+".hashCode()I", func(vm *VM, args []any) (any, error) {
			return boxHash(args[0].(*Object).Native), nil
		})
		native(class+".equals(Ljava/lang/Object;)Z", func(vm *VM, args []any) (any, error) {
			other, ok := args[1].(*Object)
			if !ok || other.Class != class {
				return int32(0), nil
			}
			return boolValue(sameBits(args[0].(*Object).Native, other.Native)), nil
		})
	}
	native("java/lang/Boolean.booleanValue()Z", func(vm *VM, args []any) (any, error) {
		return args[0].(*Object).Native, nil
	})
	native("java/lang/Character.charValue()C", func(vm *VM, args []any) (any, error) {
		return args[0].(*Object).Native, nil
	})
	numberValue := func(convert func(v any) any) nativeFunc {
		return func(vm *VM, args []any) (any, error) {
			return convert(args[0].(*Object).Native), nil
		}
	}
	native("java/lang/Number.intValue()I", numberValue(func(v any) any {
		if f, ok := v.(float32); ok {
			return f2i(float64(f))
		}
		if f, ok := v.(float64); ok {
			return f2i(f)
		}
		return int32(asInt64(v))
	}))
	native("java/lang/Number.longValue()J", numberValue(func(v any) any { return asInt64(v) }))
	native("java/lang/Number.floatValue()F", numberValue(func(v any) any {
		if i, ok := v.(int64); ok {
			return float32(i)
		}
		return float32(asFloat64(v))
	}))
	native("java/lang/Number.doubleValue()D", numberValue(func(v any) any { return asFloat64(v) }))
	native("java/lang/Number.shortValue()S", numberValue(func(v any) any { return int32(int16(asInt64(v))) }))
	native("java/lang/Number.byteValue()B", numberValue(func(v any) any { return int32(int8(asInt64(v))) }))
	native("java/lang/Integer.parseInt(Ljava/lang/String;)I", func(vm *VM, args []any) (any, error) {
		s, _ := args[0].(string)
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, vm.throw("java/lang/NumberFormatException", "For input string: \""+s+"\"")
		}
		return int32(n), nil
	})
	native("java/lang/Integer.toString(I)Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		return formatPrimitive(args[0], 'I'), nil
	})

	// Math
	native("java/lang/Math.abs(I)I", func(vm *VM, args []any) (any, error) {
		if v := args[0].(int32); v < 0 {
			return -v, nil
		}
		return args[0], nil
	})
	native("java/lang/Math.abs(J)J", func(vm *VM, args []any) (any, error) {
		if v := args[0].(int64); v < 0 {
			return -v, nil
		}
		return args[0], nil
	})
	native("java/lang/Math.abs(D)D", func(vm *VM, args []any) (any, error) {
		return math.Abs(args[0].(float64)), nil
	})
	native("java/lang/Math.max(II)I", func(vm *VM, args []any) (any, error) {
		return max(args[0].(int32), args[1].(int32)), nil
	})
	native("java/lang/Math.min(II)I", func(vm *VM, args []any) (any, error) {
		return min(args[0].(int32), args[1].(int32)), nil
	})
	native("java/lang/Math.max(JJ)J", func(vm *VM, args []any) (any, error) {
		return max(args[0].(int64), args[1].(int64)), nil
	})
	native("java/lang/Math.min(JJ)J", func(vm *VM, args []any) (any, error) {
		return min(args[0].(int64), args[1].(int64)), nil
	})
	native("java/lang/Math.sqrt(D)D", func(vm *VM, args []any) (any, error) {
		return math.Sqrt(args[0].(float64)), nil
	})

	// PrintStream
	printer := func(newline bool, format func(vm *VM, v any) (string, error)) nativeFunc {
		return func(vm *VM, args []any) (any, error) {
			s := ""
			if len(args) > 1 {
				var err error
				if s, err = format(vm, args[1]); err != nil {
					return nil, err
				}
			}
			if newline {
				s += "\n"
			}
			_, err := vm.Out.Write([]byte(s))
			return nil, err
		}
	}
	for _, name := range []string{"print", "println"} {
		nl := name == "println"
		ref := func(vm *VM, v any) (string, error) { return vm.stringOf(v) }
		native("java/io/PrintStream."+name+"(Ljava/lang/String;)V", printer(nl, ref))
		native("java/io/PrintStream."+name+"(Ljava/lang/Object;)V", printer(nl, ref))
		for _, d := range "ZCIJFD" {
			desc := byte(d)
			native("java/io/PrintStream."+name+"("+string(d)+")V", printer(nl, func(vm *VM, v any) (string, error) {
				return formatPrimitive(v, desc), nil
			}))
		}
	}
	native("java/io/PrintStream.println()V", printer(true, nil))

	// Throwable
	native("java/lang/Throwable.<init>()V", func(vm *VM, args []any) (any, error) { return nil, nil })
	native("java/lang/Throwable.<init>(Ljava/lang/String;)V", func(vm *VM, args []any) (any, error) {
		args[0].(*Object).Fields["detailMessage"] = args[1]
		return nil, nil
	})
	native("java/lang/Throwable.getMessage()Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		return args[0].(*Object).Fields["detailMessage"], nil
	})
	native("java/lang/Throwable.toString()Ljava/lang/String;", func(vm *VM, args []any) (any, error) {
		return (&Exception{Object: args[0].(*Object)}).Error(), nil
	})
}

func boxHash(v any) int32 {
	switch x := v.(type) {
	case int32:
		return x
	case int64:
		return int32(x ^ int64(uint64(x)>>32))
	case float32:
		return int32(math.Float32bits(x))
	case float64:
		b := math.Float64bits(x)
		return int32(b ^ b>>32)
	}
	return 0
}

// sameBits compares box contents the way the wrapper equals methods do.
func sameBits(a, b any) bool {
	switch x := a.(type) {
	case float32:
		y, ok := b.(float32)
		return ok && math.Float32bits(x) == math.Float32bits(y)
	case float64:
		y, ok := b.(float64)
		return ok && math.Float64bits(x) == math.Float64bits(y)
	}
	return a == b
}

// ---------------------------------------------------------------------------
// invokedynamic
// ---------------------------------------------------------------------------

const (
	recipeArg   = '\u0001'
	recipeConst = '\u0002'
)

// invokeDynamic supports call sites bootstrapped by
// StringConcatFactory.makeConcatWithConstants.
func (vm *VM) invokeDynamic(f *frame, index int) error {
	c, err := f.pool.Entry(index)
	if err != nil || c.Tag != classfile.TagInvokeDynamic {
		return fmt.Errorf("interp: %s: bad invokedynamic index %d: %w", f.m, index, ErrBadCode)
	}
	name, desc, err := f.pool.NameAndTypeAt(int(c.B))
	if err != nil {
		return fmt.Errorf("interp: %s: %w", f.m, err)
	}
	bootstraps := f.m.class.bootstraps
	if int(c.A) >= len(bootstraps) {
		return fmt.Errorf("interp: %s: bootstrap %d missing: %w", f.m, c.A, ErrBadCode)
	}
	bsm := bootstraps[c.A]
	handle, err := f.pool.Entry(int(bsm.Handle))
	if err != nil {
		return fmt.Errorf("interp: %s: %w", f.m, err)
	}
	target, err := f.pool.MemberRefAt(int(handle.B))
	if err != nil {
		return fmt.Errorf("interp: %s: %w", f.m, err)
	}
	if target.Owner != "java/lang/invoke/StringConcatFactory" || target.Name != "makeConcatWithConstants" {
		return fmt.Errorf("interp: %s: bootstrap %s.%s: %w", f.m, binaryName(target.Owner), target.Name, ErrUnsupported)
	}
	if len(bsm.Args) == 0 {
		return fmt.Errorf("interp: %s: %s: missing recipe: %w", f.m, name, ErrBadCode)
	}
	recipe, err := f.pool.LoadableAt(int(bsm.Args[0]))
	if err != nil {
		return fmt.Errorf("interp: %s: %w", f.m, err)
	}
	params, _, ok := parseDescriptor(desc)
	if !ok {
		return fmt.Errorf("interp: %s: bad descriptor %q: %w", f.m, desc, ErrBadCode)
	}
	args := f.popN(len(params))

	var b strings.Builder
	argIndex, constIndex := 0, 1
	for _, r := range recipe.(string) {
		switch r {
		case recipeArg:
			if argIndex >= len(args) {
				return fmt.Errorf("interp: %s: recipe has too many arguments: %w", f.m, ErrBadCode)
			}
			s, err := vm.concatArg(args[argIndex], params[argIndex])
			if err != nil {
				return err
			}
			b.WriteString(s)
			argIndex++
		case recipeConst:
			if constIndex >= len(bsm.Args) {
				return fmt.Errorf("interp: %s: recipe has too many constants: %w", f.m, ErrBadCode)
			}
			v, err := f.pool.LoadableAt(int(bsm.Args[constIndex]))
			if err != nil {
				return fmt.Errorf("interp: %s: %w", f.m, err)
			}
			s, err := vm.concatArg(v, constantDesc(v))
			if err != nil {
				return err
			}
			b.WriteString(s)
			constIndex++
		default:
			b.WriteRune(r)
		}
	}
	f.push(b.String())
	return nil
}

func (vm *VM) concatArg(v any, desc string) (string, error) {
	if desc[0] == 'L' || desc[0] == '[' {
		return vm.stringOf(v)
	}
	return formatPrimitive(v, desc[0]), nil
}

func constantDesc(v any) string {
	switch v.(type) {
	case int32:
		return "I"
	case int64:
		return "J"
	case float32:
		return "F"
	case float64:
		return "D"
	}
	return "Ljava/lang/Object;"
}
