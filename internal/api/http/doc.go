/*
Package http implements the REST surface of the NUI tester.

Handlers are thin: they resolve the workspace named by :id, bind and
validate the request, call one workspace operation and map domain errors
to status codes (404 unknown, 400 invalid input, 413 over limits, 410
closed, 503 storage unavailable).

Documents rendered in the preview, whether the instrumented entry or an
HTML resource, carry SandboxPolicy as their Content-Security-Policy.
*/
package http
