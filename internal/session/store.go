package session

import (
	"sync"

	"github.com/dabbawala/ordersync/internal/model"
)

// Change is a credential transition. LoggedIn false means logout; the
// credentials are then zero.
type Change struct {
	Creds    model.Credentials
	LoggedIn bool
}

// CredentialStore is the authentication boundary the bridge observes. The
// sync layer never performs authentication itself; it reacts to whatever
// identity the host application holds.
type CredentialStore interface {
	// Snapshot returns the current credentials and whether a session exists.
	Snapshot() (model.Credentials, bool)

	// Subscribe returns a new channel receiving credential transitions.
	Subscribe() <-chan Change
}

// Store is an in-memory CredentialStore. The host application calls Login
// and Logout; the bridge and liveness monitor observe.
type Store struct {
	mu       sync.Mutex
	creds    model.Credentials
	loggedIn bool
	subs     []chan Change
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// NewStaticStore creates a Store pre-populated with credentials, for
// deployments that authenticate once from config at startup.
func NewStaticStore(creds model.Credentials) *Store {
	return &Store{creds: creds, loggedIn: true}
}

// Login installs credentials and notifies subscribers.
func (s *Store) Login(creds model.Credentials) {
	s.mu.Lock()
	s.creds = creds
	s.loggedIn = true
	s.notifyLocked(Change{Creds: creds, LoggedIn: true})
	s.mu.Unlock()
}

// Logout clears credentials and notifies subscribers.
func (s *Store) Logout() {
	s.mu.Lock()
	s.creds = model.Credentials{}
	s.loggedIn = false
	s.notifyLocked(Change{})
	s.mu.Unlock()
}

// Snapshot returns the current credentials.
func (s *Store) Snapshot() (model.Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.loggedIn
}

// Subscribe registers a change subscriber.
func (s *Store) Subscribe() <-chan Change {
	ch := make(chan Change, 4)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notifyLocked(c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
