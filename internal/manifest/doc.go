// Package manifest loads package, binding and action declarations from CUE
// or YAML documents and applies them through an entity.Manager.
//
// Both formats share one shape:
//
//	namespace: guest            # optional, defaults to the caller's
//	packages:
//	  weather:
//	    parameters: {units: metric, region: us}
//	    actions:
//	      forecast: {kind: echo, parameters: {days: 3}}
//	bindings:
//	  myWeather:
//	    package: weather        # "name", "ns/name" or "/ns/name"
//	    parameters: {region: eu}
//	actions:
//	  hello: {kind: echo}       # top-level, or "pkg/name"
//
// Parameter order follows the source document. Numbers must be integers.
package manifest
