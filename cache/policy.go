package cache

import (
	"encoding/json"
	"log"
	"time"
)

// Policy fills a Cache on miss. Backend failures never fail a lookup: they are
// logged and handled as a miss.
type Policy struct {
	backend Cache
}

func NewPolicy(backend Cache) *Policy {
	return &Policy{backend: backend}
}

// GetOrFetch returns the entry stored under key, or calls fetch and stores its
// result for ttl. A failed fetch is returned as is and nothing is stored, so
// the next call tries again.
func (p *Policy) GetOrFetch(key string, ttl time.Duration, fetch func() (Entry, error)) (Entry, error) {
	if entry, ok := p.lookup(key); ok {
		return entry, nil
	}

	entry, err := fetch()
	if err != nil {
		return Entry{}, err
	}

	b, err := json.Marshal(entry)
	if err == nil {
		err = p.backend.Save(key, b, ttl)
	}
	if err != nil {
		log.Printf("Failed to cache %s: %s", key, err)
	}
	return entry, nil
}

func (p *Policy) lookup(key string) (Entry, bool) {
	ok, err := p.backend.Contains(key)
	if err != nil {
		log.Printf("Cache lookup error for %s: %s", key, err)
		return Entry{}, false
	} else if !ok {
		return Entry{}, false
	}

	b, err := p.backend.Fetch(key)
	if err != nil {
		log.Printf("Cache fetch error for %s: %s", key, err)
		return Entry{}, false
	}

	var entry Entry
	if err = json.Unmarshal(b, &entry); err != nil {
		log.Printf("Ignore unreadable cache entry %s: %s", key, err)
		return Entry{}, false
	}
	return entry, true
}
