// Package kv is the durable key-value boundary the quote store mirrors its
// state to.
package kv

import "errors"

// Keys used by the quote store.
const (
	KeyItems  = "klsinformatica_items"
	KeyClient = "klsinformatica_client"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks . Storage

// Storage is a synchronous string key-value store.
type Storage interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value at key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}
