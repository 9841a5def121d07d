// Package api serves packages, bindings, actions and activations over HTTP.
//
// Routes live under /api/v1/namespaces/{ns}. The namespace "_" stands for
// the server's default namespace. Errors are JSON objects carrying the
// entity error code:
//
//	{"code": "NOT_FOUND", "error": "NOT_FOUND: package \"guest/weather\": does not exist"}
package api
