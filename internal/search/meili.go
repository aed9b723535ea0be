package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxPersons = "ancestry_persons"

// Meili indexes persons in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the person index.
// An unreachable server is tolerated; the health loop keeps probing and
// reconfigures the index on recovery.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxPersons,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxPersons, err)
	}

	index := m.client.Index(idxPersons)
	filterable := []interface{}{"treeId", "ownerId", "isPublic"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxPersons, err)
	}
	searchable := []string{"firstName", "lastName", "maidenName", "treeName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxPersons, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the person index filtered to what the viewer may see:
// their own trees, public trees, and trees shared with them.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	filters := []string{
		fmt.Sprintf("ownerId = %d", q.ViewerID),
		"isPublic = true",
	}
	if len(q.SharedTreeIDs) > 0 {
		ids := make([]string, len(q.SharedTreeIDs))
		for i, id := range q.SharedTreeIDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		filters = append(filters, fmt.Sprintf("treeId IN [%s]", strings.Join(ids, ", ")))
	}

	resp, err := m.client.Index(idxPersons).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: strings.Join(filters, " OR "),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		PersonID:   decodeInt64(hit, "personId"),
		TreeID:     decodeInt64(hit, "treeId"),
		TreeName:   decodeString(hit, "treeName"),
		FirstName:  decodeString(hit, "firstName"),
		LastName:   decodeString(hit, "lastName"),
		MaidenName: decodeString(hit, "maidenName"),
		BirthYear:  int(decodeInt64(hit, "birthYear")),
		DeathYear:  int(decodeInt64(hit, "deathYear")),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt64(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

// IndexPerson adds or updates a person document.
func (m *Meili) IndexPerson(record PersonRecord) error {
	_, err := m.client.Index(idxPersons).AddDocuments([]PersonRecord{record}, nil)
	return err
}

// DeletePerson removes a person's document for one tree.
func (m *Meili) DeletePerson(personID, treeID int64) error {
	_, err := m.client.Index(idxPersons).DeleteDocument(DocumentID(personID, treeID), nil)
	return err
}

// IndexPersons bulk-indexes person records.
func (m *Meili) IndexPersons(records []PersonRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPersons).AddDocuments(records, nil)
	return err
}
