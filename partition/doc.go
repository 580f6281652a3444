// Package partition implements C3: a pure, stateless function mapping an
// event to a partition id and a critical flag. Per spec.md's redesign
// note, implementations are selected from a closed set of builtins plus a
// symbolic-name registration hook — never by runtime class loading.
package partition
