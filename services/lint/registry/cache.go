// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/sitterlint/services/lint/language"
)

// CacheStats reports matcher cache activity.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Builds  int64 `json:"builds"`
	Errors  int64 `json:"errors"`
}

// Cache is a read-through cache of Matchers.
//
// Description:
//
//	Entries are keyed by language and a hash of the active rule set
//	(rule ids, severities and options in registration order, plus the
//	RuleSet version). Concurrent misses for the same key wait on a single
//	build via singleflight; entries are never mutated once stored.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Matcher
	flight  singleflight.Group

	hits   int64
	misses int64
	builds int64
	errors int64
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Matcher)}
}

// Get returns the matcher for (lang, active rules), building it on a miss.
//
// Inputs:
//
//	ctx - Used for tracing only; a build in progress is not interrupted.
//	set - Registered rules.
//	lang - Target language.
//	act - Activation filter. Nil activates every rule.
//
// Outputs:
//
//	*Matcher - Shared, read-only matcher.
//	error - Build failure, wrapping ErrCorrupted.
func (c *Cache) Get(ctx context.Context, set *RuleSet, lang *language.Language, act Activation) (*Matcher, error) {
	if act == nil {
		act = AllActive{}
	}
	key := Key(set, lang, act)

	c.mu.RLock()
	m, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		atomic.AddInt64(&c.hits, 1)
		recordCacheLookup(ctx, lang.Name, true)
		return m, nil
	}
	atomic.AddInt64(&c.misses, 1)
	recordCacheLookup(ctx, lang.Name, false)

	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		existing, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		ctx, span := startBuildSpan(ctx, lang.Name)
		defer span.End()
		start := time.Now()

		built, err := Build(set, lang, act)
		recordBuild(ctx, lang.Name, time.Since(start), err == nil)
		if err != nil {
			span.RecordError(err)
			atomic.AddInt64(&c.errors, 1)
			return nil, err
		}
		atomic.AddInt64(&c.builds, 1)

		c.mu.Lock()
		c.entries[key] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Matcher), nil
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Entries: entries,
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Builds:  atomic.LoadInt64(&c.builds),
		Errors:  atomic.LoadInt64(&c.errors),
	}
}

// Clear closes and removes every matcher.
//
// Only call Clear between runs.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, m := range c.entries {
		m.Close()
		delete(c.entries, key)
	}
}

// Key derives the cache key for (lang, active rule set).
func Key(set *RuleSet, lang *language.Language, act Activation) string {
	entries, version := set.snapshot()

	h := sha256.New()
	for _, e := range entries {
		id := e.rule.ID
		if !e.languages[lang.Name] || !act.IsActive(id) {
			continue
		}
		// fmt prints maps with sorted keys, so options hash stably.
		fmt.Fprintf(h, "%s\x00%d\x00%v\n", id, act.Severity(id, e.rule.Severity), act.Options(id))
	}
	return fmt.Sprintf("%s:%d:%s", lang.Name, version, hex.EncodeToString(h.Sum(nil)))
}
