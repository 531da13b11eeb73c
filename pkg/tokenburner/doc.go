// Package tokenburner provides a client for the Token Burner game API.
//
// The Token Burner service runs short timed games in which an agent submits
// actions that burn tokens and inflate complexity. This client maps every
// API endpoint to a method and adds PlayAuto, a polling loop that drives a
// whole game with a trivial strategy.
//
// # Authentication
//
// Requests are authenticated with one of two credentials:
//   - API Key: Sent in the X-API-Key header
//   - Bearer Token: Obtained from /auth/token, sent in the Authorization header
//
// When both are configured the bearer token wins. Authenticate stores the
// issued token on the client, so every later call on the same client uses it.
// The client is not safe for concurrent Authenticate and request calls.
//
// # Basic Usage
//
//	client := tokenburner.NewClient(&tokenburner.ClientConfig{
//	    BaseURL: "http://localhost:3000/api/v2",
//	    APIKey:  "demo-key-123",
//	})
//
//	// Play a whole game with the greedy strategy
//	result, err := client.PlayAuto(ctx, 5, tokenburner.StrategyGreedy)
//
//	// Read the leaderboard
//	entries, err := client.GetLeaderboard(ctx)
//
// # Error Handling
//
// Non-2xx responses are returned as *HTTPError carrying the status code and
// body. PerformAction rejects unknown methods locally with an error matching
// ErrInvalidArgument. Bodies that do not match the expected record are
// returned as *DecodeError:
//
//	state, err := client.GetGameStatus(ctx, gameID)
//	var httpErr *tokenburner.HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
//	    // Handle unknown game
//	}
package tokenburner
