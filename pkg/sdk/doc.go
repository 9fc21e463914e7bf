// Package tocha embeds the tocha search pipeline in a Go program.
//
// A Client connects to the same backends as the tocha worker (PostgreSQL,
// Redis or Valkey) and can either rank documents in-process or serve stored
// request records the way the worker does.
//
// # Direct search
//
//	client, _ := tocha.New(ctx, tocha.WithPostgres("postgres://localhost/app"))
//	defer client.Close()
//
//	hits, _ := client.Search(ctx, tocha.SearchRequest{
//	    Collection: "articles",
//	    Fields:     []string{"title", "body"},
//	    Query:      "title:golang +concurrency",
//	    Where:      []tocha.Condition{{Field: "lang", Operator: "==", Value: "en"}},
//	})
//
// # Serving request records
//
//	client, _ := tocha.New(ctx,
//	    tocha.WithValkey("localhost:6379", ""),
//	    tocha.WithRequestsCollection("tocha_searches"),
//	    tocha.WithConcurrency(4),
//	)
//	_ = client.Serve(ctx) // blocks until ctx is done
package tocha
