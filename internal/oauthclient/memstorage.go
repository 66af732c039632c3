package oauthclient

import "sync"

// MemStorage is the default process-local Storage implementation, guarded
// by a single RWMutex across its five independent maps.
type MemStorage struct {
	mu       sync.RWMutex
	tokens   map[string]Token
	clients  map[string]ClientInfo
	metadata map[string]ServerMetadata
	pkce     map[string]PKCEParams
	states   map[string]StateToken
}

// NewMemStorage constructs an empty in-memory store.
func NewMemStorage() *MemStorage {
	return &MemStorage{
		tokens:   make(map[string]Token),
		clients:  make(map[string]ClientInfo),
		metadata: make(map[string]ServerMetadata),
		pkce:     make(map[string]PKCEParams),
		states:   make(map[string]StateToken),
	}
}

func (s *MemStorage) GetToken(serverURL string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[serverURL]
	return t, ok
}

func (s *MemStorage) SetToken(serverURL string, token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[serverURL] = token
}

func (s *MemStorage) DeleteToken(serverURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, serverURL)
}

func (s *MemStorage) GetClientInfo(serverURL string) (ClientInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[serverURL]
	return c, ok
}

func (s *MemStorage) SetClientInfo(serverURL string, info ClientInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[serverURL] = info
}

func (s *MemStorage) DeleteClientInfo(serverURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, serverURL)
}

func (s *MemStorage) GetServerMetadata(serverURL string) (ServerMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[serverURL]
	return m, ok
}

func (s *MemStorage) SetServerMetadata(serverURL string, metadata ServerMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[serverURL] = metadata
}

func (s *MemStorage) DeleteServerMetadata(serverURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metadata, serverURL)
}

func (s *MemStorage) GetPKCE(serverURL string) (PKCEParams, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pkce[serverURL]
	return p, ok
}

func (s *MemStorage) SetPKCE(serverURL string, params PKCEParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkce[serverURL] = params
}

func (s *MemStorage) DeletePKCE(serverURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pkce, serverURL)
}

func (s *MemStorage) GetState(serverURL string) (StateToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[serverURL]
	return st, ok
}

func (s *MemStorage) SetState(serverURL string, state StateToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[serverURL] = state
}

func (s *MemStorage) DeleteState(serverURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, serverURL)
}

var _ Storage = (*MemStorage)(nil)
