// Package client is a thin submission client for the coordinator's
// wire protocol (§6). It opens one TCP connection per call, writes a
// single JSON frame, and for CheckStatus reads the coordinator's
// response off the same connection before closing it. SubmitTask
// writes its frame and closes without waiting for a reply.
//
// # Basic usage
//
//	c := client.New("localhost:8080")
//
//	id, err := c.SubmitTask("echo", "hello", 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	done, err := c.CheckStatus(id)
//
// # Configuration
//
// The client supports functional options:
//
//	c := client.New("localhost:8080",
//	    client.WithDialTimeout(10*time.Second),
//	)
package client
