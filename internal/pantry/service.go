package pantry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/pantry-tracker/internal/lineitems"
	"github.com/zombor/pantry-tracker/internal/scanning"
)

// commitWorkers bounds concurrent inventory writes per commit
const commitWorkers = 4

var (
	reFilenameStrip = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reFilenameSpace = regexp.MustCompile(`\s+`)
	reExtension     = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)
)

// IDGenerator generates unique IDs for scans and inventory items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now()
}

// Service handles receipt scanning and inventory operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	parser      *lineitems.Parser
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUIDs and the system clock.
// A nil parser uses the built-in rules.
func NewService(db DB, scanner scanning.Scanner, storage Storage, parser *lineitems.Parser) *Service {
	return NewServiceWithDeps(db, scanner, storage, parser, uuidGenerator{}, systemTime{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, parser *lineitems.Parser, idGen IDGenerator, timeSrc TimeSource) *Service {
	if parser == nil {
		parser = lineitems.NewParser(nil)
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		parser:      parser,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up phone-generated filenames for storage keys
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !reExtension.MatchString(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameStrip.ReplaceAllString(base, "")
	base = reFilenameSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ScanReceipt stores a receipt image, reads it with the scanner and parses the
// text into items. The scan is saved for review; nothing goes into the inventory.
func (s *Service) ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Scan, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	text, err := s.scanner.ExtractText(ctx, data, contentType)
	if err != nil {
		s.removeFile(ctx, savedPath)
		if errors.Is(err, scanning.ErrNoText) {
			slog.Info("No text found on receipt", "filename", filename)
			return nil, ErrNoTextFound
		}
		if errors.Is(err, scanning.ErrUnsupportedImage) {
			slog.Info("Rejected receipt image", "filename", filename, "content_type", contentType, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	items := s.parser.Parse(text)
	if len(items) == 0 {
		slog.Info("No items found on receipt", "filename", filename, "lines", len(lineitems.Segment(text)))
		s.removeFile(ctx, savedPath)
		return nil, ErrNoItemsFound
	}

	scan := &Scan{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		Text:        text,
		Items:       items,
		Total:       sumPrices(items),
		CreatedAt:   now,
	}

	if err := s.db.SaveScan(scan); err != nil {
		s.removeFile(ctx, savedPath)
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	slog.Info("Scanned receipt", "id", id, "items", len(items), "total", scan.Total)
	return scan, nil
}

// removeFile deletes a stored image, logging failures
func (s *Service) removeFile(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.Warn("Failed to delete file", "filename", key, "error", err)
	}
}

// sumPrices adds up the item prices; unparseable prices are skipped
func sumPrices(items []lineitems.Item) string {
	total := decimal.Zero
	for _, item := range items {
		if item.Price == "" {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimPrefix(item.Price, "$"))
		if err != nil {
			continue
		}
		total = total.Add(price)
	}
	return total.StringFixed(2)
}

// ParseText parses receipt text that was read elsewhere
func (s *Service) ParseText(text string) []lineitems.Item {
	return s.parser.Parse(text)
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all scans
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a scan and its image
func (s *Service) DeleteScan(ctx context.Context, id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	s.removeFile(ctx, scan.Filename)

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}

// GetScanFile retrieves the receipt image of a scan
func (s *Service) GetScanFile(ctx context.Context, id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Get(ctx, scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}
	return data, scan.ContentType, nil
}

// CommitItems adds reviewed items to the inventory. Items are written
// independently; a failed item is reported in its result and does not undo the
// others. Results are in request order.
func (s *Service) CommitItems(ctx context.Context, reqs []CommitRequest) []CommitResult {
	results := make([]CommitResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(commitWorkers)
	for i, req := range reqs {
		g.Go(func() error {
			result := CommitResult{Index: i}
			item, err := s.commitItem(ctx, req)
			if err != nil {
				slog.Error("Failed to commit item", "index", i, "name", req.Name, "error", err)
				result.Err = err
				result.Error = err.Error()
			} else {
				result.Item = item
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) commitItem(ctx context.Context, req CommitRequest) (*InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	location := LocationFor(req.Category)
	if req.Location != "" {
		loc, err := ParseLocation(req.Location)
		if err != nil {
			return nil, err
		}
		location = loc
	}

	quantity := strings.TrimSpace(req.Quantity)
	if quantity == "" {
		quantity = "1"
	}

	item := &InventoryItem{
		ID:        s.idGenerator.Generate(),
		Location:  location,
		Name:      name,
		Quantity:  quantity,
		DateAdded: s.timeSource.Now(),
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.db.SaveItem(item); err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}
	return item, nil
}

// ListInventory returns the items at a location
func (s *Service) ListInventory(location Location) ([]*InventoryItem, error) {
	items, err := s.db.ListItems(location)
	if err != nil {
		return nil, fmt.Errorf("listing %s inventory: %w", location, err)
	}
	return items, nil
}

// DeleteInventoryItem removes an item from a location
func (s *Service) DeleteInventoryItem(location Location, id string) error {
	if err := s.db.DeleteItem(location, id); err != nil {
		return fmt.Errorf("deleting inventory item: %w", err)
	}
	return nil
}
