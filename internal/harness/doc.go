// Package harness provides conformance testing for the liability solver.
//
// The harness loads YAML scenarios, runs them through the engine, and
// checks the settlement against declared expectations. Golden files pin
// the canonical JSON form of each settlement for byte-exact regression
// comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	group:
//	  id: g1
//	  members:
//	    - user: alice
//	    - user: bob
//	commitments:
//	  - id: alice-baseline
//	    creator: alice
//	    promise:
//	      - {action: work, unit: hours, base: 10}
//	  - id: bob-match
//	    creator: bob
//	    when:
//	      - {target: alice, action: work, unit: hours, min: 5}
//	    promise:
//	      - action: work
//	        unit: hours
//	        base: 2
//	        rate: 0.5
//	        reference: {user: alice, action: work, unit: hours}
//	        threshold: 5
//	        cap: 5
//	expect:
//	  iterations: 2
//	  liabilities:
//	    - {user: alice, action: work, unit: hours, amount: 10}
//	    - {user: bob, action: work, unit: hours, amount: 4.5, effective: [bob-match]}
//
// A scenario that must hit the iteration bound instead declares:
//
//	expect:
//	  diverges: true
//
// Amounts are parsed as exact decimal strings; they never pass through
// float64 on the way into the engine.
package harness
