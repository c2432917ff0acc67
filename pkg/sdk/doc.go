// Package profundo provides a Go client for the profundo deep-research
// API.
//
// A research run streams its progress as a sequence of events: stage
// transitions, decomposed sub-queries, retained sources, report text
// deltas and a terminal done or error event. The client parses the
// server's SSE stream and hands each event to a caller-supplied
// handler:
//
//	client, err := profundo.New("http://localhost:8080",
//		profundo.WithAPIKey("secret"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	resp, err := client.Research(ctx, profundo.ResearchRequest{
//		Query: "impacto da computação quântica na criptografia",
//		Depth: profundo.DepthDeep,
//	}, func(ev profundo.Event) error {
//		if d, ok := ev.(profundo.TextDeltaEvent); ok {
//			fmt.Print(d.Delta)
//		}
//		return nil
//	})
//
// Finished runs land in the library and can be listed, fetched and
// deleted; follow-up questions about a saved report go through Chat.
package profundo
