// Package pantry keeps receipt scans for review and the inventory the reviewed
// items are committed to.
package pantry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/pantry-tracker/internal/lineitems"
)

var (
	// ErrNotFound is returned when a scan or inventory item does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidLocation is returned for an unknown storage location
	ErrInvalidLocation = errors.New("invalid storage location")
	// ErrEmptyName is returned when committing an item without a name
	ErrEmptyName = errors.New("item name is required")
	// ErrUnreadable is returned when the OCR service fails
	ErrUnreadable = errors.New("could not read receipt")
	// ErrInvalidImage is returned when the upload is not an image the scanner can read
	ErrInvalidImage = errors.New("unsupported image")
	// ErrNoTextFound is returned when the OCR service finds no text in the image
	ErrNoTextFound = errors.New("no text found")
	// ErrNoItemsFound is returned when the receipt text contains no product lines
	ErrNoItemsFound = errors.New("no items found")
)

// Location is a storage location inventory items are kept in
type Location string

const (
	LocationPantry  Location = "pantry"
	LocationFridge  Location = "fridge"
	LocationFreezer Location = "freezer"
	LocationSpices  Location = "spices"
)

// Locations returns every storage location
func Locations() []Location {
	return []Location{LocationPantry, LocationFridge, LocationFreezer, LocationSpices}
}

// ParseLocation resolves a location identifier, ignoring case
func ParseLocation(s string) (Location, error) {
	loc := Location(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range Locations() {
		if l == loc {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLocation, s)
}

// LocationFor returns the location a parsed category pre-selects.
// Other has no location of its own and goes to the pantry.
func LocationFor(c lineitems.Category) Location {
	switch c {
	case lineitems.Fridge:
		return LocationFridge
	case lineitems.Freezer:
		return LocationFreezer
	case lineitems.Spices:
		return LocationSpices
	default:
		return LocationPantry
	}
}

// InventoryItem is a food item stored at a location
type InventoryItem struct {
	ID        string     `json:"id"`
	Location  Location   `json:"location"`
	Name      string     `json:"name"`
	Quantity  string     `json:"quantity"`
	DateAdded time.Time  `json:"date_added"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Scan is a scanned receipt kept until the user has reviewed its items
type Scan struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"content_type"`
	Text        string           `json:"text"`
	Items       []lineitems.Item `json:"items"`
	Total       string           `json:"total"` // Sum of item prices, two decimals
	CreatedAt   time.Time        `json:"created_at"`
}

// CommitRequest is one reviewed item to add to the inventory. When Location is
// empty the item goes where its Category points.
type CommitRequest struct {
	Name      string             `json:"name"`
	Quantity  string             `json:"quantity"`
	Location  string             `json:"location,omitempty"`
	Category  lineitems.Category `json:"category"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// CommitResult reports the outcome of one CommitRequest
type CommitResult struct {
	Index int            `json:"index"`
	Item  *InventoryItem `json:"item,omitempty"`
	Error string         `json:"error,omitempty"`
	Err   error          `json:"-"`
}
