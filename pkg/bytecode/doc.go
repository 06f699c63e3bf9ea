// Package bytecode compiles Lox source straight to bytecode and runs it on
// a stack-based virtual machine.
//
// # Architecture Overview
//
//   - Opcodes: 24 single-byte instructions with fixed byte values. Decode
//     rejects any other byte with a *DecodeError.
//
//   - Chunk: code bytes, a constant pool of at most 256 values and one
//     source line per code byte.
//
//   - Compiler: a single-pass Pratt parser. A table keyed by token type
//     gives each token an optional prefix handler, an optional infix
//     handler and a binding precedence. No AST is built; instructions are
//     emitted as the source is read. Syntax errors put the compiler in
//     panic mode, which suppresses further reports until the next
//     statement boundary.
//
//   - VM: a fetch-decode-execute loop over one chunk with an operand stack
//     and a map of globals. Block-scoped locals live on the operand stack
//     and are addressed by absolute slot.
//
// # Strings
//
// Strings are interned in an InternTable shared by the compiler and the
// VM. Create the table first, compile with it, then hand it to NewVM so
// strings built by concatenation at runtime land in the same pool.
//
//	strings := bytecode.NewInternTable()
//	chunk, err := bytecode.Compile(src, strings)
//	if err != nil {
//		return err
//	}
//	vm := bytecode.NewVM(strings)
//	_, err = vm.Interpret(chunk)
//
// # Truthiness
//
// The VM treats nil, false and the number 0 as falsey. The tree-walk
// interpreter does not treat 0 as falsey; both rules are pinned by tests.
//
// # Scope
//
// The bytecode engine has no call frames. fun, class and return are
// compile errors here and run only on the tree-walk interpreter.
package bytecode
