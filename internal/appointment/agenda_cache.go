package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/medical-appointments/internal/redis"
)

// agendaCache stores doctor agendas as JSON per (doctor, day). A nil
// *agendaCache is valid and caches nothing.
//
// Every invalidation bumps a generation counter for the (doctor, day). An
// entry carries the generation observed before its store read and is only
// served while that generation is current, so a read that raced a mutation
// can never be served after the mutation's invalidation.
type agendaCache struct {
	cache redisclient.Cache
	ttl   time.Duration
}

type agendaEntry struct {
	Generation   int64         `json:"generation"`
	Appointments []Appointment `json:"appointments"`
}

const minGenerationTTL = time.Hour

func newAgendaCache(c redisclient.Cache, ttl time.Duration) *agendaCache {
	return &agendaCache{cache: c, ttl: ttl}
}

func agendaKey(doctorID uuid.UUID, day string) string {
	return fmt.Sprintf("agenda:%s:%s", doctorID, day)
}

func agendaGenerationKey(doctorID uuid.UUID, day string) string {
	return fmt.Sprintf("agenda-gen:%s:%s", doctorID, day)
}

// generationTTL outlives any entry written under an older generation.
func (c *agendaCache) generationTTL() time.Duration {
	if ttl := 10 * c.ttl; ttl > minGenerationTTL {
		return ttl
	}
	return minGenerationTTL
}

// generation returns the current counter; a missing counter is zero.
func (c *agendaCache) generation(ctx context.Context, doctorID uuid.UUID, day string) (int64, error) {
	raw, err := c.cache.Get(ctx, agendaGenerationKey(doctorID, day))
	if errors.Is(err, redisclient.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// lookup reads the generation and then the entry. ok reports a hit. When
// canStore is false the caller must not write the result back.
func (c *agendaCache) lookup(ctx context.Context, doctorID uuid.UUID, day string) (appts []Appointment, gen int64, ok, canStore bool) {
	if c == nil {
		return nil, 0, false, false
	}

	gen, err := c.generation(ctx, doctorID, day)
	if err != nil {
		return nil, 0, false, false
	}

	raw, err := c.cache.Get(ctx, agendaKey(doctorID, day))
	if err != nil {
		return nil, gen, false, true
	}

	var entry agendaEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Generation != gen {
		return nil, gen, false, true
	}
	return entry.Appointments, gen, true, true
}

func (c *agendaCache) put(ctx context.Context, doctorID uuid.UUID, day string, gen int64, appts []Appointment) error {
	if c == nil {
		return nil
	}

	raw, err := json.Marshal(agendaEntry{Generation: gen, Appointments: appts})
	if err != nil {
		return fmt.Errorf("encode agenda: %w", err)
	}
	return c.cache.Set(ctx, agendaKey(doctorID, day), raw, c.ttl)
}

func (c *agendaCache) invalidate(ctx context.Context, doctorID uuid.UUID, days ...string) error {
	if c == nil || len(days) == 0 {
		return nil
	}

	keys := make([]string, 0, len(days))
	for _, d := range days {
		if _, err := c.cache.Incr(ctx, agendaGenerationKey(doctorID, d), c.generationTTL()); err != nil {
			return err
		}
		keys = append(keys, agendaKey(doctorID, d))
	}
	err := c.cache.Del(ctx, keys...)
	if errors.Is(err, redisclient.ErrCacheMiss) {
		return nil
	}
	return err
}
