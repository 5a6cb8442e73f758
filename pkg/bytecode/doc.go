// Package bytecode describes the JVM instruction set as seen by the
// assembler, and the verified method bodies it hands to emitters.
//
// # Catalog
//
// A Catalog holds one OpInfo per encoding. Canonical instructions own a
// slot in the 256-entry opcode table; compact forms (iload_0 .. aload_3,
// istore_0 .. astore_3) and alternates (ldc_w, goto_w, jsr_w) own their own
// opcodes and name their base; wide forms (iload_w, iinc_w, ret_w, ...)
// share their base's opcode behind the wide prefix. The only opcode shared
// by two mnemonics is 0xB7 (invokespecial, and the legacy invokenonvirtual).
//
// Stack effects are written as templates "pops>pushes" using the element
// letters I, F, J, D, A and R, listed bottom to top:
//
//	iadd    II>I
//	laload  AI>J
//	iastore AII>
//
// Instructions whose effect depends on their operands (field access,
// invocations, ldc, multianewarray) are marked Computed; stack shuffles are
// marked Shuffle and simulated by category.
//
// # Encoding selection
//
// SelectLocal and SelectIncrement choose the shortest encoding whose operand
// ranges cover the requested index (and delta), honouring the target
// version of compact forms:
//
//	c := bytecode.Default()
//	op, _ := c.SelectLocal("istore", 2, version.V8)     // istore_2
//	op, _ = c.SelectLocal("istore", 300, version.V8)    // istore_w
//	op, _ = c.SelectIncrement("iinc", 1, 200, version.V8) // iinc_w
//
// # Method bodies
//
// MethodBody is the record emitters receive: the operation list with
// symbolic label markers, declared maxima, catch and variable tables, and
// the committed frame at every label. Listing renders it for humans.
package bytecode
