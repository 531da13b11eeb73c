package tokenburner

import (
	"context"
	"errors"
	"time"
)

// Timing of the PlayAuto loop
const (
	PollInterval   = 100 * time.Millisecond
	DeadlineMargin = 100 * time.Millisecond
)

// chooseMethod picks the next action for the given strategy
func (c *Client) chooseMethod(strategy Strategy) Method {
	if strategy == StrategyGreedy {
		return MethodHallucinationInduction
	}
	return validMethods[c.intn(len(validMethods))]
}

// PlayAuto starts a game and keeps acting on it until the server reports it
// finished, the time runs out, or an action fails. The game is always
// finished afterwards and the finish summary is returned.
//
// A failed action is logged and ends the loop; it does not surface as an
// error. Errors from starting the game, polling its status, or finishing
// it are returned unchanged.
//
// When ctx is cancelled mid-game the game is still finished, on a context
// detached from ctx, and ctx's error is returned with any finish error.
func (c *Client) PlayAuto(ctx context.Context, duration int, strategy Strategy) (Document, error) {
	gameID, err := c.StartGame(ctx, duration)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	deadline := time.Duration(duration)*time.Second - DeadlineMargin

	for {
		state, err := c.GetGameStatus(ctx, gameID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.abandonGame(ctx, gameID)
			}
			return nil, err
		}
		if state.Finished() {
			break
		}

		method := c.chooseMethod(strategy)
		result, err := c.PerformAction(ctx, gameID, method)
		if err != nil {
			c.logger.Printf("Action failed: %v", err)
			break
		}
		c.logger.Printf("Action: %s, Score: %d, Tokens: %d", method, result.Score, result.TokensBurned)

		if time.Since(start) >= deadline {
			break
		}

		select {
		case <-time.After(PollInterval):
		case <-ctx.Done():
			return nil, c.abandonGame(ctx, gameID)
		}
	}

	if ctx.Err() != nil {
		return nil, c.abandonGame(ctx, gameID)
	}
	return c.FinishGame(ctx, gameID)
}

// abandonGame finishes gameID after ctx was cancelled and returns ctx's error,
// joined with the finish error if that failed too
func (c *Client) abandonGame(ctx context.Context, gameID string) error {
	if _, err := c.FinishGame(context.WithoutCancel(ctx), gameID); err != nil {
		c.logger.Printf("Finish after cancel failed: %v", err)
		return errors.Join(ctx.Err(), err)
	}
	return ctx.Err()
}
