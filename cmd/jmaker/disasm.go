package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
)

// handleDisasmCommand processes the `jmaker disasm` subcommand.
func handleDisasmCommand(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: jmaker disasm file.class...")
		return fmt.Errorf("disasm: no class files given")
	}
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("disasm: %w", err)
		}
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		if err := disassemble(stdout, data); err != nil {
			return fmt.Errorf("disasm: %s: %w", path, err)
		}
	}
	return nil
}

// disassemble prints a readable listing of a class file.
func disassemble(w io.Writer, data []byte) error {
	cf, err := classfile.Parse(data)
	if err != nil {
		return err
	}

	kind := "class"
	if cf.Access&classfile.AccInterface != 0 {
		kind = "interface"
	}
	fmt.Fprintf(w, "%s%s %s", accessString(cf.Access, classAccess), kind, cf.Name())
	if super := cf.SuperName(); super != "" {
		fmt.Fprintf(w, " extends %s", super)
	}
	if len(cf.Interfaces) > 0 {
		names := make([]string, len(cf.Interfaces))
		for i, idx := range cf.Interfaces {
			names[i], _ = cf.Pool.ClassNameAt(int(idx))
		}
		fmt.Fprintf(w, " implements %s", strings.Join(names, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  version: %d.%d\n", cf.Major, cf.Minor)
	if a, ok := cf.Attribute(cf.Attributes, "SourceFile"); ok && len(a.Data) == 2 {
		s, _ := cf.Pool.Utf8At(int(binary.BigEndian.Uint16(a.Data)))
		fmt.Fprintf(w, "  source: %s\n", s)
	}
	if a, ok := cf.Attribute(cf.Attributes, "BootstrapMethods"); ok {
		bsms, err := classfile.DecodeBootstrapMethods(a.Data)
		if err != nil {
			return err
		}
		for i, bsm := range bsms {
			fmt.Fprintf(w, "  bootstrap %d: %s", i, cf.Pool.ConstantString(int(bsm.Handle)))
			for _, arg := range bsm.Args {
				fmt.Fprintf(w, " %s", cf.Pool.ConstantString(int(arg)))
			}
			fmt.Fprintln(w)
		}
	}

	for _, f := range cf.Fields {
		name, desc := cf.MemberName(f)
		fmt.Fprintf(w, "\n  field %s%s %s", accessString(f.Access, fieldAccess), name, desc)
		if a, ok := cf.Attribute(f.Attributes, "ConstantValue"); ok && len(a.Data) == 2 {
			fmt.Fprintf(w, " = %s", cf.Pool.ConstantString(int(binary.BigEndian.Uint16(a.Data))))
		}
	}
	if len(cf.Fields) > 0 {
		fmt.Fprintln(w)
	}

	for _, m := range cf.Methods {
		if err := disassembleMethod(w, cf, m); err != nil {
			return err
		}
	}
	return nil
}

func disassembleMethod(w io.Writer, cf *classfile.ClassFile, m *classfile.Member) error {
	name, desc := cf.MemberName(m)
	fmt.Fprintf(w, "\n  method %s%s%s\n", accessString(m.Access, methodAccess), name, desc)
	if a, ok := cf.Attribute(m.Attributes, "Exceptions"); ok && len(a.Data) >= 2 {
		n := int(binary.BigEndian.Uint16(a.Data))
		for i := 0; i < n && 2+2*i+2 <= len(a.Data); i++ {
			idx := binary.BigEndian.Uint16(a.Data[2+2*i:])
			fmt.Fprintf(w, "    throws %s\n", cf.Pool.ConstantString(int(idx)))
		}
	}
	code, err := cf.Code(m)
	if err != nil {
		return fmt.Errorf("%s%s: %w", name, desc, err)
	}
	if code == nil {
		return nil
	}
	fmt.Fprintf(w, "    stack=%d locals=%d length=%d\n", code.MaxStack, code.MaxLocals, len(code.Code))
	for _, line := range strings.Split(bytecode.Disassemble(code.Code, cf.Pool), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	for _, e := range code.Exceptions {
		catch := "any"
		if e.CatchType != 0 {
			catch = cf.Pool.ConstantString(int(e.CatchType))
		}
		fmt.Fprintf(w, "    try %04d-%04d handler %04d catch %s\n", e.StartPC, e.EndPC, e.HandlerPC, catch)
	}
	if a, ok := cf.Attribute(code.Attributes, "LineNumberTable"); ok {
		lines, err := classfile.DecodeLineNumberTable(a.Data)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintf(w, "    line %d: %04d\n", l.Line, l.PC)
		}
	}
	if a, ok := cf.Attribute(code.Attributes, "LocalVariableTable"); ok {
		vars, err := classfile.DecodeLocalVariableTable(cf.Pool, a.Data)
		if err != nil {
			return err
		}
		for _, v := range vars {
			fmt.Fprintf(w, "    local %d %s %s [%04d+%d]\n", v.Slot, v.Name, v.Descriptor, v.StartPC, v.Length)
		}
	}
	return nil
}

type accessFlag struct {
	bit  uint16
	name string
}

var classAccess = []accessFlag{
	{classfile.AccPublic, "public"},
	{classfile.AccFinal, "final"},
	{classfile.AccAbstract, "abstract"},
	{classfile.AccSynthetic, "synthetic"},
}

var fieldAccess = []accessFlag{
	{classfile.AccPublic, "public"},
	{classfile.AccPrivate, "private"},
	{classfile.AccProtected, "protected"},
	{classfile.AccStatic, "static"},
	{classfile.AccFinal, "final"},
	{classfile.AccVolatile, "volatile"},
	{classfile.AccTransient, "transient"},
	{classfile.AccSynthetic, "synthetic"},
}

var methodAccess = []accessFlag{
	{classfile.AccPublic, "public"},
	{classfile.AccPrivate, "private"},
	{classfile.AccProtected, "protected"},
	{classfile.AccStatic, "static"},
	{classfile.AccFinal, "final"},
	{classfile.AccSynchronized, "synchronized"},
	{classfile.AccVarargs, "varargs"},
	{classfile.AccAbstract, "abstract"},
	{classfile.AccSynthetic, "synthetic"},
}

// accessString renders the flags of acc that appear in table, each
// followed by a space.
func accessString(acc uint16, table []accessFlag) string {
	var sb strings.Builder
	for _, f := range table {
		if acc&f.bit != 0 {
			sb.WriteString(f.name)
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
