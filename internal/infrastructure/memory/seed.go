package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ParseProductSeeds reads "id:price:stock" entries into catalog products.
func ParseProductSeeds(entries []string) ([]catalog.Product, error) {
	products := make([]catalog.Product, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("product seed %q: want id:price:stock", entry)
		}
		price, err := decimal.NewFromString(parts[1])
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("product seed %q: invalid price", entry)
		}
		stock, err := strconv.Atoi(parts[2])
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("product seed %q: invalid stock", entry)
		}
		products = append(products, catalog.Product{ID: parts[0], Price: price, Stock: stock})
	}
	return products, nil
}
