package helpers

import (
	"fmt"

	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// GroupLinesByVariant merges repeated variants into one line, keeping the
// order in which each variant first appeared.
func GroupLinesByVariant(lines []LineRequest) []LineRequest {
	index := make(map[int64]int, len(lines))
	grouped := make([]LineRequest, 0, len(lines))
	for _, line := range lines {
		if pos, ok := index[line.VariantID]; ok {
			grouped[pos].Quantity += line.Quantity
			continue
		}
		index[line.VariantID] = len(grouped)
		grouped = append(grouped, line)
	}
	return grouped
}

// VariantIDs lists the distinct variant ids of the lines.
func VariantIDs(lines []LineRequest) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	return ids
}

// PriceLines snapshots each variant's current price into an order line and
// returns the exact total. Every variant must be present in variants;
// the first missing one is reported as NOT_FOUND.
func PriceLines(lines []LineRequest, variants map[int64]models.ProductVariant) ([]models.OrderLine, decimal.Decimal, error) {
	priced := make([]models.OrderLine, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		variant, ok := variants[line.VariantID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.New(
				pkgerrors.CodeNotFound,
				fmt.Sprintf("variant %d not found", line.VariantID),
			)
		}
		orderLine := models.OrderLine{
			VariantID: variant.ID,
			Quantity:  line.Quantity,
			UnitPrice: variant.Price,
		}
		total = total.Add(orderLine.Subtotal())
		priced = append(priced, orderLine)
	}
	return priced, total, nil
}
