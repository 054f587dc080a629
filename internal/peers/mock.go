package peers

import (
	"context"
	"fmt"
	"sync"
)

// MockContentClient implements ContentClient for local development and
// testing. Uploaded activities are tracked per session so tests can
// verify compensation actually removed them.
type MockContentClient struct {
	mu      sync.Mutex
	counter int

	// Activities maps session id to live activity ids.
	Activities map[int][]string

	// UploadErr / RemoveErr force the corresponding call to fail.
	UploadErr error
	RemoveErr error

	// RemoveCalls counts Remove invocations per session.
	RemoveCalls map[int]int

	// ActivitiesPerUpload controls how many ids one upload yields.
	ActivitiesPerUpload int
}

// NewMockContentClient creates an empty mock content client.
func NewMockContentClient() *MockContentClient {
	return &MockContentClient{
		Activities:          make(map[int][]string),
		RemoveCalls:         make(map[int]int),
		ActivitiesPerUpload: 1,
	}
}

func (m *MockContentClient) ConvertAndUpload(ctx context.Context, contentRef string, sessionID int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return nil, &UpstreamError{Peer: PeerContent, Op: ActionUploadContent, Err: m.UploadErr}
	}
	var ids []string
	for i := 0; i < m.ActivitiesPerUpload; i++ {
		m.counter++
		ids = append(ids, fmt.Sprintf("act-%d", m.counter))
	}
	m.Activities[sessionID] = append(m.Activities[sessionID], ids...)
	return ids, nil
}

func (m *MockContentClient) Remove(ctx context.Context, sessionID int, activityIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls[sessionID]++
	if m.RemoveErr != nil {
		return &UpstreamError{Peer: PeerContent, Op: ActionRemoveContent, Err: m.RemoveErr}
	}
	delete(m.Activities, sessionID)
	return nil
}

// ActivityCount returns how many activities are live for the session.
func (m *MockContentClient) ActivityCount(sessionID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Activities[sessionID])
}

// MockRangeClient implements RangeClient for local development and
// testing.
type MockRangeClient struct {
	mu      sync.Mutex
	counter int

	// Ranges maps range id to its access endpoints.
	Ranges map[string][]string

	// CreateErr / DestroyErr force the corresponding call to fail.
	CreateErr  error
	DestroyErr error

	// DestroyCalls counts DestroyRange invocations per range id.
	DestroyCalls map[string]int
}

// NewMockRangeClient creates an empty mock instantiation client.
func NewMockRangeClient() *MockRangeClient {
	return &MockRangeClient{
		Ranges:       make(map[string][]string),
		DestroyCalls: make(map[string]int),
	}
}

func (m *MockRangeClient) CreateRange(ctx context.Context, topologyRef string, sessionID int, progression string) (string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", nil, &UpstreamError{Peer: PeerInstantiation, Op: ActionInstantiateRange, Err: m.CreateErr}
	}
	m.counter++
	rangeID := fmt.Sprintf("cr-%d", sessionID)
	endpoints := []string{fmt.Sprintf("10.0.%d.2:22", m.counter)}
	m.Ranges[rangeID] = endpoints
	return rangeID, endpoints, nil
}

func (m *MockRangeClient) DestroyRange(ctx context.Context, rangeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalls[rangeID]++
	if m.DestroyErr != nil {
		return &UpstreamError{Peer: PeerInstantiation, Op: ActionDestroyRange, Err: m.DestroyErr}
	}
	// Destroying an already-destroyed range succeeds.
	delete(m.Ranges, rangeID)
	return nil
}
