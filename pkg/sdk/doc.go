// Package raggate provides a Go client for the raggate RAG gateway.
//
//	client := raggate.New(
//	    raggate.WithBaseURL("http://localhost:8080"),
//	    raggate.WithToken(os.Getenv("RAGGATE_TOKEN")),
//	)
//	_, _ = client.CreateCollection(ctx, "docs", "nomic-embed-text", 0)
//	_, _ = client.InsertDocuments(ctx, "docs", docs)
//	sources, _ := client.QueryStream(ctx, raggate.QueryRequest{
//	    Model:      "llama3",
//	    Query:      "what is raggate",
//	    Collection: "docs",
//	}, func(line []byte) error {
//	    fmt.Print(string(line))
//	    return nil
//	})
package raggate
