// Package harness runs sampling scenarios against space definitions.
//
// A scenario names a space definition, a seed and a sample count, draws the
// samples, and checks properties every draw must satisfy. Scenarios double
// as executable documentation of how conditional dimensions behave.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: optimizer_presence
//	description: "optimizer.lr appears only with adam"
//	space: ../spaces/optimizer.yaml
//	seed: 7
//	samples: 50
//	variables: { epoch: 3 }
//	assertions:
//	  - type: always_present
//	    names: [optimizer, epoch]
//	  - type: present_when
//	    names: [optimizer.lr]
//	    when: { name: optimizer, value: adam }
//	  - type: value_range
//	    name: optimizer.lr
//	    min: 0.001
//	    max: 0.1
//
// A scenario may instead expect sampling to fail:
//
//	expect_error: RETRY_EXHAUSTED
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - always_present: Every listed name appears in every sample
//   - never_present: No listed name appears in any sample
//   - present_when: Listed names appear exactly in samples matching when
//   - value_in: A present name takes one of the listed values
//   - value_range: A present name is numeric and within [min, max]
//   - present_count: A name appears in exactly count samples
//   - distinct: A name never repeats a value, e.g. an identity field
//
// # Deterministic Testing
//
// Every run rebuilds the space and seeds a fresh generator from the
// scenario, so the same scenario always draws the same samples. Snapshot
// renders them as canonical JSON lines for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/optimizer.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
