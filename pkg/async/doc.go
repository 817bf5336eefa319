// Package async runs fire-and-forget background work safely.
//
// # Overview
//
// SafeGo wraps a bare `go func()` with a timeout, panic recovery, and
// error logging, so a failing background task can never crash the server
// or leak a goroutine past its deadline.
//
//	async.SafeGo(ctx, 30*time.Second, "upload report artifact", func(ctx context.Context) error {
//		return artifacts.Upload(ctx, reportID, format, data)
//	})
//
// Work that outlives the originating request must detach from the request
// context with context.WithoutCancel before being handed to SafeGo.
//
// # Related Packages
//
//   - pkg/api: Uses SafeGo for export artifact uploads
package async
