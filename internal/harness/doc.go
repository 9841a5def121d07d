// Package harness runs YAML scenarios against a fresh in-memory store.
//
// A scenario is an ordered list of steps that create packages, bindings and
// actions, invoke targets and delete entities. Invoke steps may state what
// they expect: the exact effective parameters the executor received, the
// binding annotation, its absence, the activation status, or an error code.
// Trace assertions run over the recorded activations afterwards.
//
// Runs are deterministic: activation IDs, sequence numbers and timestamps
// come from testutil, so traces can be compared against golden files.
//
// Example:
//
//	name: bound_invoke
//	description: binding parameters override the package's
//	steps:
//	  - package: weather
//	    parameters: {units: metric, region: us}
//	  - action: weather/forecast
//	  - bind: myWeather
//	    to: weather
//	    parameters: {region: eu}
//	  - invoke: myWeather/forecast
//	    expect:
//	      parameters: {units: metric, region: eu}
//	      binding: guest/myWeather
package harness
