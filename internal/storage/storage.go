// Package storage defines the key-value boundary the history and
// favorites lists persist through. Implementations may fail; callers
// decide how failures surface (the history store records them as
// non-fatal error state).
package storage

// Store is a minimal persistent key-value interface. Values are JSON
// documents; keys are namespaced per user.
type Store interface {
	// GetItem returns the value stored under key and whether the key
	// exists. A missing key is ("", false, nil), not an error.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error
}

const (
	historyKeyPrefix   = "@scanHistory_"
	favoritesKeyPrefix = "@favorites_"

	// GuestNamespace is the namespace used when no user is signed in.
	GuestNamespace = "guest"
)

// Namespace returns the storage namespace for a user identifier,
// falling back to the guest namespace when the identifier is empty.
func Namespace(userID string) string {
	if userID == "" {
		return GuestNamespace
	}
	return userID
}

// HistoryKey returns the storage key holding the scan history list
// for the given user.
func HistoryKey(userID string) string {
	return historyKeyPrefix + Namespace(userID)
}

// FavoritesKey returns the storage key holding the favorites list for
// the given user.
func FavoritesKey(userID string) string {
	return favoritesKeyPrefix + Namespace(userID)
}
