// Package locator derives the card identifier from a shareable page URL,
// minting and writing back a fresh one when the URL does not carry it yet.
package locator

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

const queryParam = "card"

var (
	fallbackMu  sync.Mutex
	fallbackRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewID mints a globally unique identifier, preferring a V4 UUID from the
// crypto source and falling back to a pseudo-random hex string salted with
// the wall clock when the source is unavailable.
func NewID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}

	fallbackMu.Lock()
	n := fallbackRnd.Uint64()
	fallbackMu.Unlock()
	return fmt.Sprintf("id-%x-%d", n, time.Now().UnixMilli())
}

// Resolve reads the card id from the page URL's query parameter. When the
// parameter is absent a new id is minted and written into the returned URL,
// so a second Resolve of that URL yields the same id. minted reports whether
// a fresh id was generated.
func Resolve(pageURL string) (id string, resolved string, minted bool, err error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", false, fmt.Errorf("invalid page url: %w", err)
	}

	q := u.Query()
	if id = q.Get(queryParam); id != "" {
		return id, u.String(), false, nil
	}

	id = NewID()
	q.Set(queryParam, id)
	u.RawQuery = q.Encode()
	return id, u.String(), true, nil
}

// ShareLink builds the read-only share URL: the page's origin and path with
// only the card parameter attached, dropping any other query state.
func ShareLink(pageURL, id string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url: %w", err)
	}

	share := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	q := url.Values{}
	q.Set(queryParam, id)
	share.RawQuery = q.Encode()
	return share.String(), nil
}
