// Package daemon is the panel's side of the node daemon API.
//
// # Operations
//
//	Create  POST   {scheme}://{fqdn}:{daemon_port}/api/servers   {"uuid": ..., "start_on_completion": ...}
//	Delete  DELETE {scheme}://{fqdn}:{daemon_port}/api/servers/{uuid}
//
// Requests carry the node's token as a bearer token. Transport failures,
// timeouts, and non-2xx responses all surface as
// *errors.DaemonConnectionError; the HTTP status is kept when there was one.
// Delete treats 404 as success.
//
// # Testing
//
// MockClient records calls and can inject errors or delays per operation:
//
//	mock := daemon.NewMockClient()
//	mock.SetError("Create", &errors.DaemonConnectionError{Node: "node-1", StatusCode: 500})
//	...
//	if len(mock.GetCallsFor("Delete")) != 1 { ... }
package daemon
