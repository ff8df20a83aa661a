package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizroom-service/internal/domain"
)

// SnapshotStore is an optional shared second-level cache for quiz snapshots
// (e.g. Redis), so multiple instances serve the same frozen question list.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, key string) (domain.Quiz, bool, error)
	PutSnapshot(ctx context.Context, key string, quiz domain.Quiz) error
}

// QuizSnapshots freezes a quiz's question list per (room, session). Prime is
// called on room start; from then on grading reads the snapshot, so quiz edits
// cannot leak into a running session even across an advance.
type QuizSnapshots struct {
	loader QuizLoader
	shared SnapshotStore // may be nil
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]snapshotEntry
}

type snapshotEntry struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizSnapshots(loader QuizLoader, shared SnapshotStore, ttl time.Duration) *QuizSnapshots {
	return &QuizSnapshots{
		loader: loader,
		shared: shared,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]snapshotEntry),
	}
}

func snapshotKey(roomID string, session int) string {
	return fmt.Sprintf("%s#%d", roomID, session)
}

// Prime loads the quiz fresh and overwrites any cached snapshot for the
// (room, session) slot. Called exactly when a session starts.
func (c *QuizSnapshots) Prime(ctx context.Context, quizID, roomID string, session int) (domain.Quiz, error) {
	quiz, err := c.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	key := snapshotKey(roomID, session)
	c.store(key, quiz)
	if c.shared != nil {
		if err := c.shared.PutSnapshot(ctx, key, quiz); err != nil {
			// best-effort; the local copy still serves this instance
			return quiz, nil
		}
	}
	return quiz, nil
}

// Get returns the frozen quiz for the slot, falling back to the shared cache
// and finally the loader on a cold start (e.g. server restart mid-session).
func (c *QuizSnapshots) Get(ctx context.Context, quizID, roomID string, session int) (domain.Quiz, error) {
	key := snapshotKey(roomID, session)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		if c.shared != nil {
			if quiz, ok, err := c.shared.GetSnapshot(ctx, key); err == nil && ok {
				c.store(key, quiz)
				return quiz, nil
			}
		}

		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.store(key, quiz)
		if c.shared != nil {
			_ = c.shared.PutSnapshot(ctx, key, quiz)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizSnapshots) store(key string, quiz domain.Quiz) {
	c.mu.Lock()
	c.cache[key] = snapshotEntry{
		quiz:      quiz,
		expiresAt: c.clock().Add(c.ttlWithJitter()),
	}
	c.mu.Unlock()
}

func (c *QuizSnapshots) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return time.Hour
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
