package storage

import (
	"context"
	"sync"

	"cropopt/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	populations map[string]model.PopulationRecord
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	topPlans    map[string][]model.TopPlanRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.populations = make(map[string]model.PopulationRecord)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.topPlans = make(map[string][]model.TopPlanRecord)
	return nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.PopulationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.populations[population.ID] = copyPopulation(population)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.PopulationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	population, ok := s.populations[id]
	if !ok {
		return model.PopulationRecord{}, false, nil
	}
	return copyPopulation(population), true, nil
}

func (s *MemoryStore) DeletePopulation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.populations, id)
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]float64(nil), history...)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]float64(nil), history...)
	return copied, true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopPlans(_ context.Context, runID string, top []model.TopPlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topPlans[runID] = copyTopPlans(top)
	return nil
}

func (s *MemoryStore) GetTopPlans(_ context.Context, runID string) ([]model.TopPlanRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.topPlans[runID]
	if !ok {
		return nil, false, nil
	}
	return copyTopPlans(top), true, nil
}

func copyPopulation(population model.PopulationRecord) model.PopulationRecord {
	plans := make([]model.Plan, len(population.Plans))
	for i, plan := range population.Plans {
		plans[i] = plan.Clone()
	}
	population.Plans = plans
	return population
}

func copyTopPlans(top []model.TopPlanRecord) []model.TopPlanRecord {
	copied := make([]model.TopPlanRecord, len(top))
	for i, record := range top {
		record.Plan = record.Plan.Clone()
		record.Violations = append([]string(nil), record.Violations...)
		copied[i] = record
	}
	return copied
}
