// Package grpcclient provides a fluent builder for secure gRPC client connections with optional
// OAuth2 authentication.
//
// It defaults to TLS 1.2+ using system roots to avoid accidental plaintext connections. Optional
// methods let you add OAuth2 interceptors, custom CA or mTLS credentials, and extra dial options.
//
// # Features
//
//   - Fluent builder for gRPC clients
//   - Bearer tokens from oauth2client, refreshed before they expire
//   - One retry of unary calls rejected with codes.Unauthenticated
//   - Secure-by-default TLS; optional custom CA and mTLS
//   - Additional dial options via WithDialOptions
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithOAuth2(oauth2client.Config{
//	        TokenURL:     "https://auth.example.com/oauth/v2/token",
//	        ClientID:     "client-id",
//	        ClientSecret: "client-secret",
//	        Scope:        "openid profile",
//	    }).
//	    WithTLS("/path/to/ca.crt", "", "", "server.example.com").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := pb.NewYourServiceClient(conn)
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
package grpcclient
