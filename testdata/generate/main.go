// Command generate emits testdata/orders.json: a few days of plausible
// drink sales for demo seeding.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refresqueria/caja/internal/domain"
)

var prices = map[domain.DrinkType]decimal.Decimal{
	domain.DrinkHalf: decimal.NewFromInt(25),
	domain.DrinkOne:  decimal.NewFromInt(45),
}

func main() {
	rng := rand.New(rand.NewSource(42))

	days := 5
	var orders []domain.Order

	now := time.Now().UTC().Truncate(time.Second)
	for d := days; d >= 1; d-- {
		day := now.AddDate(0, 0, -d)
		// Between 8 and 20 sales per day, spread over opening hours.
		sales := 8 + rng.Intn(13)
		for s := 0; s < sales; s++ {
			createdAt := time.Date(day.Year(), day.Month(), day.Day(),
				9+rng.Intn(10), rng.Intn(60), rng.Intn(60), 0, time.UTC)
			orders = append(orders, buildOrder(rng, createdAt))
		}
	}

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	out := "testdata/orders.json"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", out, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d orders to %s\n", len(orders), out)
}

func buildOrder(rng *rand.Rand, createdAt time.Time) domain.Order {
	types := []domain.DrinkType{domain.DrinkHalf, domain.DrinkOne}

	nItems := 1 + rng.Intn(3)
	items := make([]domain.LineItem, 0, nItems)
	subtotal := decimal.Zero
	for i := 0; i < nItems; i++ {
		typ := types[rng.Intn(len(types))]
		count := 1 + rng.Intn(4)
		price := prices[typ]
		total := price.Mul(decimal.NewFromInt(int64(count)))
		subtotal = subtotal.Add(total)
		items = append(items, domain.LineItem{
			DrinkType: typ,
			Count:     count,
			Price:     price,
			Total:     total,
		})
	}

	fee := decimal.Zero
	if rng.Intn(4) == 0 {
		fee = decimal.NewFromInt(10)
	}
	tip := decimal.Zero
	if rng.Intn(3) == 0 {
		tip = decimal.NewFromInt(int64(5 * (1 + rng.Intn(3))))
	}

	return domain.Order{
		TotalAmount: subtotal.Add(fee).Add(tip),
		Fee:         fee,
		Tip:         tip,
		IsPaid:      rng.Intn(5) != 0,
		CreatedAt:   createdAt,
		Items:       items,
	}
}
