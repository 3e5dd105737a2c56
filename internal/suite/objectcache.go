package suite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
)

var objectCacheInfo = models.TestDescriptor{
	ID:           IDObjectCache,
	Name:         "Object Cache",
	Description:  "Set, get, delete and missed-get cycles against the configured Redis object cache.",
	ConfigLabel:  "Cycles",
	ConfigUnit:   "cycles",
	DefaultValue: 1_000,
	MinValue:     10,
	MaxValue:     100_000,
	Experimental: true,
}

type objectCacheParams struct {
	Scoring  `mapstructure:",squash"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// TTL bounds how long a key outlives a crashed run.
	TTL time.Duration `mapstructure:"ttl"`
}

// ObjectCacheTest measures round trips to a Redis object cache.
type ObjectCacheTest struct {
	scoring Scoring
	client  *redis.Client
	ttl     time.Duration
	guard   *guard.Guard
}

// NewObjectCache builds the object_cache test. Params: addr, password, db,
// timeout, ttl, target (seconds per 1000 operations), weight. Without addr
// the test reports an error when run.
func NewObjectCache(env Env) (*ObjectCacheTest, error) {
	p := objectCacheParams{
		Scoring: Scoring{Target: 0.1, Weight: 0.10},
		Timeout: 5 * time.Second,
		TTL:     time.Minute,
	}
	if err := decodeParams(env.Params, &p); err != nil {
		return nil, fmt.Errorf("object_cache params: %w", err)
	}

	t := &ObjectCacheTest{scoring: p.Scoring, ttl: p.TTL, guard: env.guardOrDefault()}
	if p.Addr != "" {
		t.client = redis.NewClient(&redis.Options{
			Addr:             p.Addr,
			Password:         p.Password,
			DB:               p.DB,
			DialTimeout:      p.Timeout,
			ReadTimeout:      p.Timeout,
			WriteTimeout:     p.Timeout,
			DisableIndentity: true,
		})
	}
	return t, nil
}

func (t *ObjectCacheTest) Info() models.TestDescriptor {
	return objectCacheInfo
}

// Close releases the cache connection pool.
func (t *ObjectCacheTest) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *ObjectCacheTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDObjectCache, value)
	}
	defer recoverInto(IDObjectCache, &res)

	stats := &models.ObjectCacheStats{}
	res.ObjectCache = stats

	if t.client == nil {
		res.Error = "object_cache: no object cache configured (set tests.object_cache.params.addr)"
		return res
	}
	if err := t.client.Ping(ctx).Err(); err != nil {
		res.Error = fmt.Sprintf("object_cache: connecting to %s: %v", t.client.Options().Addr, err)
		return res
	}

	prefix := "wpbench:" + uniqueSuffix() + ":"

	var errs errorList
	start := time.Now()
	for i := 0; i < value; i++ {
		if err := checkpoint(ctx, t.guard, i); err != nil {
			errs.Add(fmt.Errorf("stopped after %d cycles: %w", i, err))
			break
		}
		if err := t.cycle(ctx, prefix+strconv.Itoa(i), stats); err != nil {
			errs.Add(fmt.Errorf("cycle %d: %w", i, err))
			continue
		}
		stats.Cycles++
	}
	res.Time = models.Seconds(time.Since(start))

	if errs.Len() > 0 {
		res.Error = errs.String()
	}
	return res
}

// cycle sets key, reads it back, deletes it and confirms the delete with a
// miss.
func (t *ObjectCacheTest) cycle(ctx context.Context, key string, stats *models.ObjectCacheStats) error {
	want := randomString(32)

	stats.Operations++
	if err := t.client.Set(ctx, key, want, t.ttl).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	stats.Operations++
	got, err := t.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		stats.Misses++
		return errors.New("get: key missing right after set")
	case err != nil:
		return fmt.Errorf("get: %w", err)
	case got != want:
		stats.Hits++
		return errors.New("get: value differs from what was set")
	}
	stats.Hits++

	stats.Operations++
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	stats.Operations++
	_, err = t.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		stats.Misses++
	case err != nil:
		return fmt.Errorf("get after delete: %w", err)
	default:
		stats.Hits++
		return errors.New("get after delete: key still present")
	}
	return nil
}

// Score rates against Target seconds per 1000 operations.
func (t *ObjectCacheTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	ops := 4 * value
	if result.ObjectCache != nil && result.ObjectCache.Operations > 0 {
		ops = result.ObjectCache.Operations
	}
	return t.scoring.rate(IDObjectCache, result.Time, float64(ops)/1000)
}
