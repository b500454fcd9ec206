package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ocr/internal/matching"
	"github.com/zombor/receipt-ocr/internal/pipeline"
)

// Receipt is a processed receipt image with its extraction result
type Receipt struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"content_type"`
	Result      *pipeline.Result `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// InventoryItem is a known possession that receipts can be reconciled against
type InventoryItem struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand,omitempty"`
	PurchaseDate  *time.Time       `json:"purchase_date,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	ReceiptID     string           `json:"receipt_id,omitempty"` // receipt the item was last reconciled with
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Reconciliation describes how one inventory item was filled from a receipt
type Reconciliation struct {
	ItemID   string         `json:"item_id"`
	ItemName string         `json:"item_name"`
	Match    matching.Match `json:"match"`
	Filled   []string       `json:"filled"`
}
