// Package suitefile loads test suites described in YAML, so that suites can be run by the
// command-line tool without writing Go code.
//
// A suite file describes a root context and any number of nested contexts. Every hook entry
// and every test is made of steps that act on an in-memory state store: the same store that
// the engine reads state snapshots from. For example:
//
//	name: counter
//	state:
//	  counter: 0
//	contexts:
//	  - name: increments
//	    beforeEach:
//	      - compute: {counter: "counter + 1"}
//	    tests:
//	      - name: sees one increment
//	        steps:
//	          - assert: counter == 1
//
// Step kinds are set, compute, assert, run, sleep, and fail; each step has exactly one.
package suitefile
