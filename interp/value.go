package interp

import (
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------
//
// Operand stack and local values are plain Go values:
//
//	boolean, byte, char, short, int   int32
//	long                              int64
//	float                             float32
//	double                            float64
//	null                              nil
//	java.lang.String                  string
//	other objects                     *Object
//	arrays                            *Array

// Object is an instance of a class. Native holds the state of library
// classes: the builder of a StringBuilder, the value of a box.
type Object struct {
	Class  string // internal name
	Fields map[string]any
	Native any
	id     int32
}

// Array is a JVM array. Desc is its type descriptor, such as "[I".
type Array struct {
	Desc string
	Data []any
}

// Exception is a Java exception that escaped the invoked method.
type Exception struct {
	Object *Object
}

func (e *Exception) Error() string {
	name := binaryName(e.Object.Class)
	if msg, ok := e.Object.Fields["detailMessage"].(string); ok {
		return name + ": " + msg
	}
	return name
}

// Message returns the exception's detail message, if any.
func (e *Exception) Message() string {
	msg, _ := e.Object.Fields["detailMessage"].(string)
	return msg
}

func binaryName(internal string) string { return strings.ReplaceAll(internal, "/", ".") }

func internalName(name string) string { return strings.ReplaceAll(name, ".", "/") }

// className returns the runtime class of a reference value.
func className(v any) string {
	switch x := v.(type) {
	case string:
		return "java/lang/String"
	case *Object:
		return x.Class
	case *Array:
		return x.Desc
	}
	return ""
}

func isWide(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// zero returns the default value for a field or element descriptor.
func zero(desc string) any {
	if desc == "" {
		return nil
	}
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return int32(0)
	case 'J':
		return int64(0)
	case 'F':
		return float32(0)
	case 'D':
		return float64(0)
	}
	return nil
}

// parseDescriptor splits a method descriptor into parameter and return
// descriptors.
func parseDescriptor(desc string) (params []string, ret string, ok bool) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", false
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n := fieldLength(desc[i:])
		if n == 0 {
			return nil, "", false
		}
		params = append(params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", false
	}
	return params, desc[i+1:], true
}

func fieldLength(s string) int {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0
	}
	if s[i] == 'L' {
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return 0
		}
		return i + end + 1
	}
	if !strings.ContainsRune("ZBCSIJFD", rune(s[i])) {
		return 0
	}
	return i + 1
}

// ---------------------------------------------------------------------------
// Numeric semantics
// ---------------------------------------------------------------------------

func f2i(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func f2l(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// fcmp compares like fcmpl or fcmpg; nan is the result when either operand
// is NaN.
func fcmp(a, b float64, nan int32) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return nan
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// String conversion
// ---------------------------------------------------------------------------

// formatFloat renders a float or double the way Float.toString and
// Double.toString do.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bitSize)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, bitSize)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(e)
}

// formatPrimitive renders a primitive value of the given descriptor.
func formatPrimitive(v any, desc byte) string {
	switch x := v.(type) {
	case int32:
		switch desc {
		case 'Z':
			return strconv.FormatBool(x != 0)
		case 'C':
			return string(rune(uint16(x)))
		}
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	}
	return "?"
}

// javaHash computes String.hashCode over UTF-16 code units.
func javaHash(s string) int32 {
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
