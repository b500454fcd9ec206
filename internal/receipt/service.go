package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-ocr/internal/matching"
	"github.com/zombor/receipt-ocr/internal/pipeline"
	"github.com/zombor/receipt-ocr/internal/recognition"
)

// DefaultMatchThreshold is the similarity a fuzzy item match needs before
// reconciliation accepts it
const DefaultMatchThreshold = 0.7

// Fields filled by Reconcile
const (
	FilledBrand         = "brand"
	FilledPurchaseDate  = "purchase_date"
	FilledPurchasePrice = "purchase_price"
)

// Processor turns an image into a pipeline result
type Processor interface {
	Process(ctx context.Context, img recognition.Image) (*pipeline.Result, error)
}

// IDGenerator generates unique IDs for records
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

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Service stores processed receipts and reconciles them with inventory
type Service struct {
	db             DB
	processor      Processor
	storage        Storage
	idGenerator    IDGenerator
	timeSource     TimeSource
	matchThreshold float64
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(db DB, processor Processor, storage Storage) *Service {
	return NewServiceWithDeps(db, processor, storage, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, processor Processor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:             db,
		processor:      processor,
		storage:        storage,
		idGenerator:    idGen,
		timeSource:     timeSrc,
		matchThreshold: DefaultMatchThreshold,
	}
}

// SetMatchThreshold sets the minimum similarity for fuzzy reconciliation
func (s *Service) SetMatchThreshold(min float64) {
	s.matchThreshold = min
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips phone-generated names down to a short safe form
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ProcessReceipt stores the image, runs it through the pipeline and saves the
// result. The stored image is removed again if processing fails.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, err := s.processor.Process(ctx, recognition.Image{Data: data, ContentType: contentType})
	if err != nil {
		slog.Error("Failed to process receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		return nil, fmt.Errorf("processing receipt: %w", err)
	}

	receipt := &Receipt{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		Result:      result,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		s.removeFile(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Stored receipt", "id", id, "confidence", result.Confidence, "items", len(result.Items))
	return receipt, nil
}

func (s *Service) removeFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	s.removeFile(receipt.Filename)

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the original image of a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}

// CreateItem adds an item to the inventory
func (s *Service) CreateItem(item *InventoryItem) (*InventoryItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, fmt.Errorf("item name is required")
	}
	now := s.timeSource.Now()
	item.ID = s.idGenerator.Generate()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.db.SaveItem(item); err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}
	return item, nil
}

// GetItem retrieves an inventory item by ID
func (s *Service) GetItem(id string) (*InventoryItem, error) {
	item, err := s.db.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns the inventory sorted by name
func (s *Service) ListItems() ([]*InventoryItem, error) {
	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// Reconcile matches every inventory item against the items on a receipt and
// fills in the purchase details the item is still missing. Only items with
// an accepted match are changed, and items already reconciled with this
// receipt are skipped.
func (s *Service) Reconcile(receiptID string) ([]Reconciliation, error) {
	receipt, err := s.db.GetReceipt(receiptID)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.Result == nil || len(receipt.Result.Items) == 0 {
		return []Reconciliation{}, nil
	}

	names := make([]string, 0, len(receipt.Result.Items))
	for _, it := range receipt.Result.Items {
		names = append(names, it.Name)
	}

	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	now := s.timeSource.Now()
	out := make([]Reconciliation, 0)
	for _, item := range items {
		// already filled from this receipt
		if item.ReceiptID == receipt.ID {
			continue
		}
		m := matching.Find(item.Name, names)
		if !m.Accepted(s.matchThreshold) {
			continue
		}

		filled := fillFromReceipt(item, receipt.Result, m.Index)
		item.ReceiptID = receipt.ID
		item.UpdatedAt = now
		if err := s.db.SaveItem(item); err != nil {
			return nil, fmt.Errorf("updating item %s: %w", item.ID, err)
		}

		slog.Info("Reconciled item", "item", item.Name, "receipt", receipt.ID, "match", m.Kind, "similarity", m.Similarity)
		out = append(out, Reconciliation{
			ItemID:   item.ID,
			ItemName: item.Name,
			Match:    *m,
			Filled:   filled,
		})
	}
	return out, nil
}

// fillFromReceipt copies vendor, date and price into item where they are
// empty and appends a receipt summary to its notes. Returns the fields set.
func fillFromReceipt(item *InventoryItem, result *pipeline.Result, index int) []string {
	filled := make([]string, 0, 3)

	if item.Brand == "" && result.Vendor != nil {
		item.Brand = *result.Vendor
		filled = append(filled, FilledBrand)
	}
	if item.PurchaseDate == nil && result.Date != nil {
		d := *result.Date
		item.PurchaseDate = &d
		filled = append(filled, FilledPurchaseDate)
	}
	if item.PurchasePrice == nil {
		// a single-item receipt is paid in full by that item
		if len(result.Items) == 1 && result.Total != nil {
			p := *result.Total
			item.PurchasePrice = &p
		} else {
			p := result.Items[index].Price
			item.PurchasePrice = &p
		}
		filled = append(filled, FilledPurchasePrice)
	}

	var notes strings.Builder
	notes.WriteString(item.Notes)
	notes.WriteString("\n--- Receipt Data ---")
	if result.Vendor != nil {
		notes.WriteString("\nStore: " + *result.Vendor)
	}
	if result.Date != nil {
		notes.WriteString("\nPurchase Date: " + result.Date.Format("Jan 2, 2006"))
	}
	if result.Total != nil {
		notes.WriteString("\nTotal: $" + result.Total.StringFixed(2))
	}
	item.Notes = strings.TrimPrefix(notes.String(), "\n")

	return filled
}
