package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:highest"

// Leaderboard indexes best scores in a sorted set. Scores only ever rise.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// Record stores highestScore for userID unless a higher one is already indexed.
func (l *Leaderboard) Record(ctx context.Context, userID string, highestScore int) error {
	return l.client.ZAddGT(ctx, leaderboardKey, redis.Z{Score: float64(highestScore), Member: userID}).Err()
}

// Top returns up to limit user ids with a positive score, best first.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	return l.client.ZRevRangeByScore(ctx, leaderboardKey, &redis.ZRangeBy{
		Max:   "+inf",
		Min:   "(0",
		Count: int64(limit),
	}).Result()
}
