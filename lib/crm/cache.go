package crm

import (
	"fmt"
	"sync"
	"time"
)

// WorkflowCache keeps recently fetched workflow lists for a short TTL
// so reopening the picker does not refetch. Entries are keyed by the
// full credential so switching api key or location never serves the
// previous account's workflows.
type WorkflowCache struct {
	mu      sync.Mutex
	entries map[string]workflowCacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type workflowCacheEntry struct {
	workflows []WorkflowRef
	fetchedAt time.Time
}

const DefaultWorkflowTTL = 5 * time.Minute

func NewWorkflowCache(ttl time.Duration) *WorkflowCache {
	if ttl <= 0 {
		ttl = DefaultWorkflowTTL
	}
	return &WorkflowCache{
		entries: map[string]workflowCacheEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(cred Credential) string {
	return fmt.Sprintf("%s\x00%s\x00%s", cred.APIVersion, cred.APIKey, cred.LocationID)
}

func (c *WorkflowCache) get(cred Credential) ([]WorkflowRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(cred)]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		delete(c.entries, cacheKey(cred))
		return nil, false
	}
	return entry.workflows, true
}

func (c *WorkflowCache) put(cred Credential, workflows []WorkflowRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(cred)] = workflowCacheEntry{
		workflows: workflows,
		fetchedAt: c.now(),
	}
}

// Invalidate drops the entry for a credential, used when settings
// change mid-session.
func (c *WorkflowCache) Invalidate(cred Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(cred))
}
