package redis

import (
	"context"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skyconnfig/qdq/internal/domain"
)

func tallyKey(sessionID int64) string {
	return "quiz:buzz:firsts:" + strconv.FormatInt(sessionID, 10)
}

// Tally counts buzz races won per participant as a Redis sorted set.
// The zset survives instance restarts, so leaderboard broadcasts stay
// correct even when arbitration moved between instances mid-session.
type Tally struct {
	rdb *goredis.Client
}

var _ domain.BuzzTally = (*Tally)(nil)

func NewTally(client *Client) *Tally {
	return &Tally{rdb: client.rdb}
}

func (t *Tally) IncrFirst(ctx context.Context, sessionID int64, p domain.Participant) error {
	return t.rdb.ZIncrBy(ctx, tallyKey(sessionID), 1, p.String()).Err()
}

// Top returns the n participants with the most races won, best first.
func (t *Tally) Top(ctx context.Context, sessionID int64, n int64) ([]domain.TallyEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := t.rdb.ZRevRangeWithScores(ctx, tallyKey(sessionID), 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.TallyEntry, 0, len(rows))
	for _, row := range rows {
		member, ok := row.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.TallyEntry{
			MemberID: member,
			Firsts:   int64(row.Score),
		})
	}
	return entries, nil
}
