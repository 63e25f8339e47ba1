package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to a
// Postgres ILIKE scan.
type Service struct {
	meili    *Meili
	fallback *PGLike
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *PGLike) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexApplication pushes an application into the search index
// (fire-and-forget to Meilisearch).
func (s *Service) IndexApplication(record ApplicationRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexApplication(record); err != nil {
			log.Printf("search: index application %s: %v", record.ID, err)
		}
	}()
}

// DeleteApplication removes an application from the search index
// (fire-and-forget).
func (s *Service) DeleteApplication(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteApplication(id); err != nil {
			log.Printf("search: delete application %s: %v", id, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
