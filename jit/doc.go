/*
Package jit is the core of a meta-tracing JIT.

Tracing and lowering

Running program ->
	record (trace/swt) ->
Location Trace (trace.SirTrace) ->
	lower (tir) ->
Trace IR (tir.Trace) ->
	codegen (not here) ->
Native Trace

Reference execution

Pack (pack) ->
	lay out (sir) ->
Stack Frames ->
	interpret (interp) ->
Memory Effects

*/
package jit
