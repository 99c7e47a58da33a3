// Package api provides the HTTP server behind ship's daemon endpoints.
// Every route requires the configured bearer token.
//
// Key components:
//   - API: Manages server setup and endpoint registration.
//   - RequireToken: Wraps handlers with token validation.
//
// Usage example:
//
//	server := api.New("secure-token", ":8080")
//	server.RegisterFunc("/v1/update", handler.Handle)
//	if err := server.Start(ctx, true); err != nil {
//	    logrus.WithError(err).Error("API start failed")
//	}
package api
