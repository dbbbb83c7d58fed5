// Package harness runs end-to-end sync scenarios.
//
// A scenario seeds a source document, then runs a sequence of steps
// against it and an initially empty target document. Both sides have their
// own engine, executor and in-memory state database, and share one
// in-memory object transport.
//
// # Scenario Format
//
//	name: source_edit
//	description: "Edits on the source reach the target"
//	source:
//	  - kind: Level
//	    handle: lvl-1
//	    name: Level 1
//	steps:
//	  - send: {}
//	    expect: {state: done, converted: 1}
//	  - receive: {}
//	    expect:
//	      state: done
//	      actions: {created: 1}
//	  - edit:
//	      delete: [lvl-1]
//	      upsert:
//	        - kind: Level
//	          handle: lvl-2
//	          name: Level 2
//	assertions:
//	  - type: target_count
//	    count: 1
//
// Source elements use the memdoc YAML layout and must carry fixed handles;
// handles become application ids, so fixed handles keep traces stable.
//
// # Assertion Types
//
//   - target_count: the target document has Count elements
//   - target_contains: the target has an element of Kind with Label
//   - placeholders: the target stream records Count placeholders
//   - transactions: the target ran exactly Names, in order
//
// # Deterministic Output
//
// Operation ids come from testutil.SequenceIDs ("src-0001", "dst-0001")
// and durations from testutil.StepClock. Created target handles are random
// and never appear in the rendered trace, so RunWithGolden compares
// identical bytes across runs.
package harness
