// Package harness runs checking scenarios end to end.
//
// A scenario imports a document tree into an in-memory sqlitedoc store,
// starts one job on an engine.Manager, drives the document through a list
// of steps and records what the job looked like after each one. The trace
// is deterministic: every trigger is waited out before the next step, and
// it carries no job ids or timestamps, so it can be compared against a
// golden file.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	document:
//	  document: shop
//	  nodes:
//	    - kind: Catalog
//	      label: catalog
//	      properties: { name: Main }
//	checkers: [required-name]
//	schema: |
//	  #Product: { name: string }
//	job:
//	  target: path:shop/catalog
//	  continuous: true
//	steps:
//	  - name: rename
//	    mutations:
//	      - { op: set-property, node: "path:shop/catalog", name: name, value: "" }
//	  - name: again
//	    retrigger: true
//	assertions:
//	  - type: final_state
//	    state: completed
//	  - type: message_count
//	    severity: error
//	    count: 1
//
// # Assertion Types
//
//   - final_state: the job's state after the last step
//   - result_count: how many results the job stored
//   - message_count: messages in the latest result, optionally per severity
//   - message_text: the latest result has a message with this exact text
//   - create_error: job creation failed with this runtime error code
package harness
