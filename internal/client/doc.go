/*
Package client is the Go client for the tester REST API, used by nuictl.

Requests go through resty on a pooled retryablehttp transport. Transport
errors and overload statuses (429, 502, 503, 504) are retried with
retryablehttp's backoff, which honors Retry-After. A circuit breaker
opens after five consecutive server failures.

# Usage

	c := client.New(client.DefaultOptions())

	files, err := client.Collect(ctx, "./my-ui", workspace.DefaultIgnore)
	ws, err := c.CreateWorkspace(ctx, "my-ui")
	res, err := c.Upload(ctx, ws.ID.String(), files)

	f, _ := os.Create("build.zip")
	_, err = c.Export(ctx, ws.ID.String(), 0, "zip", f)
*/
package client
