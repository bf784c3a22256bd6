package metadata

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/parser"
)

// MockProvider is a deterministic fixture provider. Search answers by
// normalized title and kind in insertion order; Details answers by id.
type MockProvider struct {
	name string

	mu         sync.RWMutex
	candidates map[string][]Candidate
	details    map[string]*Details
	err        error
	onSearch   func(ctx context.Context, q Query)

	searchCalls  atomic.Int64
	detailsCalls atomic.Int64
}

// NewMockProvider creates an empty mock with the given provider name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:       name,
		candidates: make(map[string][]Candidate),
		details:    make(map[string]*Details),
	}
}

func mockKey(title string, kind domain.Kind) string {
	return string(kind) + "|" + parser.Normalize(title)
}

// AddCandidates registers the answer to a search for title. Each
// candidate's Provider and Kind are filled in when empty.
func (m *MockProvider) AddCandidates(title string, kind domain.Kind, candidates ...Candidate) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mockKey(title, kind)
	for _, c := range candidates {
		if c.Provider == "" {
			c.Provider = m.name
		}
		if c.Kind == "" {
			c.Kind = kind
		}
		m.candidates[key] = append(m.candidates[key], c)
	}
	return m
}

// AddDetails registers a details record under its ExternalID.
func (m *MockProvider) AddDetails(d *Details) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Provider == "" {
		d.Provider = m.name
	}
	m.details[d.ExternalID] = d
	return m
}

// SetError makes every call fail with err; nil restores normal answers.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// OnSearch installs a hook that runs at the start of every Search.
func (m *MockProvider) OnSearch(fn func(ctx context.Context, q Query)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSearch = fn
}

// SearchCalls returns how many times Search ran.
func (m *MockProvider) SearchCalls() int {
	return int(m.searchCalls.Load())
}

// DetailsCalls returns how many times Details ran.
func (m *MockProvider) DetailsCalls() int {
	return int(m.detailsCalls.Load())
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Search(ctx context.Context, q Query) ([]Candidate, error) {
	m.searchCalls.Add(1)

	m.mu.RLock()
	hook, err := m.onSearch, m.err
	result := append([]Candidate{}, m.candidates[mockKey(q.Title, q.Kind)]...)
	m.mu.RUnlock()

	if hook != nil {
		hook(ctx, q)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *MockProvider) Details(ctx context.Context, externalID string, kind domain.Kind) (*Details, error) {
	m.detailsCalls.Add(1)

	m.mu.RLock()
	d, ok := m.details[externalID]
	err := m.err
	m.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(m.name, "details", KindNotFound, nil)
	}
	copied := *d
	return &copied, nil
}
