// Package harness provides scenario-based conformance testing for the
// Chronos repair engine.
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules: rules
//	today: 2025-03-01
//	passes: 2
//	events:
//	  - id: anna
//	    title: "GEB: Anna Müller 15.03.1990"
//	    start: 1990-03-15
//	    all_day: true
//	    rrule: FREQ=YEARLY
//	expect:
//	  counts: { no_match: 2 }
//	  titles:
//	    anna: "🎉 Birthday: Anna Müller (15.03.) – turns 35."
//	  no_writes_after_first_pass: true
//
// Each scenario runs against a fresh in-memory calendar with a fixed
// clock, so results are identical across runs. The expectation block is
// a subset match: only the listed event ids and outcome counters are
// checked, except that listed counters must match exactly.
package harness
