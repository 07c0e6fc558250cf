// Package receipt turns a stored invoice into a printable document.
package receipt

import (
	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

// Enrich fills display names on the stored items. Product names come from the
// catalog entry owning the returned id, then from whatever the sink reported,
// then the raw id. A missing category name falls back to the submitted line
// that resolved to the same product id.
func Enrich(stored invoice.StoredInvoice, cat *catalog.Catalog, submitted []invoice.SubmissionLine) invoice.StoredInvoice {
	out := stored
	out.Items = make([]invoice.StoredItem, len(stored.Items))
	for i, it := range stored.Items {
		if label, ok := cat.LabelForID(it.ProductID); ok {
			it.ProductName = label
		} else if it.ProductName == "" {
			it.ProductName = it.ProductID
		}
		if it.CategoryName == "" {
			for _, line := range submitted {
				if line.ProductID == it.ProductID && line.CategoryLabel != "" {
					it.CategoryName = line.CategoryLabel
					break
				}
			}
		}
		out.Items[i] = it
	}
	return out
}
