// Package api provides a client for a remote tlsn-verifier server.
//
// # Usage
//
//	client, err := api.NewClient("https://verifier.internal", http.DefaultClient)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	out, err := client.Verify(ctx, presentationBytes)
//	if err != nil {
//		log.Fatal(err) // transport failure, not an invalid presentation
//	}
//	fmt.Println(out.Valid)
package api

// HealthResponse is returned by GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned with non-200 statuses
type ErrorResponse struct {
	Error string `json:"error"`
}
