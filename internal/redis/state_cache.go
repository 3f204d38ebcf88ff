package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/skyconnfig/qdq/internal/domain"
)

// stateTTL bounds how long a stale mirror can outlive its session.
const stateTTL = 24 * time.Hour

// Key schema:
//   quiz:session:state:{id}  — hash: status, current_question_index, updated_at
//   quiz:buzz:firsts:{id}    — zset: member "user:N"/"team:N", score = races won
//   quiz:events:{id}         — pub/sub channel for cross-instance fan-out

func sessionStateKey(sessionID int64) string {
	return "quiz:session:state:" + strconv.FormatInt(sessionID, 10)
}

const (
	fieldStatus        = "status"
	fieldQuestionIndex = "current_question_index"
	fieldUpdatedAt     = "updated_at"
)

// StateCache mirrors live session state into Redis so sibling instances
// and dashboards can read it without a database round trip.
type StateCache struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

var _ domain.StateCache = (*StateCache)(nil)

func NewStateCache(client *Client, clock clockwork.Clock) *StateCache {
	return &StateCache{rdb: client.rdb, clock: clock}
}

func (c *StateCache) CacheSessionState(ctx context.Context, s *domain.Session) error {
	key := sessionStateKey(s.ID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldStatus:        strconv.Itoa(int(s.Status)),
		fieldQuestionIndex: strconv.Itoa(s.CurrentIndex),
		fieldUpdatedAt:     strconv.FormatInt(c.clock.Now().UnixMilli(), 10),
	})
	pipe.Expire(ctx, key, stateTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *StateCache) ClearSessionState(ctx context.Context, sessionID int64) error {
	return c.rdb.Del(ctx, sessionStateKey(sessionID)).Err()
}
