package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-transformer/constants"
)

// ConversionRecord is the per-document history row written after each batch.
type ConversionRecord struct {
	ID             int64                      `json:"id"`
	BatchID        uuid.UUID                  `json:"batch_id"`
	DocumentID     uuid.UUID                  `json:"document_id"`
	Filename       string                     `json:"filename"`
	Source         constants.Source           `json:"source"`
	OrderNumber    string                     `json:"order_number,omitempty"`
	Status         constants.ConversionStatus `json:"status"`
	Stage          constants.Stage            `json:"stage,omitempty"`
	OrdersCount    int                        `json:"orders_count"`
	LineItemsCount int                        `json:"line_items_count"`
	Unresolved     int                        `json:"unresolved"`
	ErrorMessage   string                     `json:"error_message,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
}
