// Package client is the VendorGuard Go SDK.
//
// # Requesting an analysis
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(os.Getenv("VENDORGUARD_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := c.Analyze(ctx, "Acme Corp")
//	if err != nil {
//	    log.Fatal(err) // transport, auth or validation failure
//	}
//	if report.IsFallback() {
//	    // the model call failed; the report is a FLAG_FOR_REVIEW placeholder
//	}
//	fmt.Println(report.AggregateScore, report.Recommendation)
//
// Analyze blocks until the server has the model's answer, which can take
// tens of seconds. The default client timeout is two minutes; adjust it with
// WithTimeout.
//
// # Reading history
//
//	reports, _ := c.ListReports(ctx, 10) // newest first
//	r, _ := c.GetReport(ctx, reports[0].ID)
//	body, fileName, _ := c.Download(ctx, r.ID, "yaml")
//
// Reports are immutable, so GetReport results can be cached:
//
//	c, _ := client.New(baseURL, client.WithCacheTTL(10*time.Minute))
//
// # Audit log
//
//	records, _ := c.AuditRecords(ctx, 50)
//	v, _ := c.VerifyAudit(ctx)
//	if !v.Valid {
//	    log.Printf("audit chain broken: %s", v.Error)
//	}
//
// Errors for non-2xx responses are *APIError values; use errors.Is with
// ErrNotFound or ErrUnauthorized to branch on the common cases.
package client
