package importer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain"
)

type stubCatalog struct {
	items []domain.Product
}

func (s *stubCatalog) Put(p domain.Product) {
	s.items = append(s.items, p)
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,slug,name,price,currency,stock,image
101,mug,Mug,9.99,usd,,/img/mug.jpg
,,,,,,/img/mug-2.jpg
102,shirt,Shirt,19.50,USD,3,
,,,,,,/img/shirt.jpg
`
	catalog := &stubCatalog{}
	imp := NewCSVImporter(strings.NewReader(csvData), catalog)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 products imported, got %d", count)
	}
	if len(catalog.items) != 2 {
		t.Fatalf("expected 2 products saved, got %d", len(catalog.items))
	}

	mug := catalog.items[0]
	if mug.ID != 101 || mug.Slug != "mug" || mug.Price.String() != "9.99" || mug.Currency != "USD" {
		t.Fatalf("unexpected product data: %+v", mug)
	}
	if mug.Stock != -1 {
		t.Fatalf("expected unlimited stock, got %d", mug.Stock)
	}
	if mug.Image != "/img/mug.jpg" {
		t.Fatalf("expected first image to win, got %q", mug.Image)
	}

	shirt := catalog.items[1]
	if shirt.Stock != 3 || shirt.Image != "/img/shirt.jpg" {
		t.Fatalf("unexpected product data: %+v", shirt)
	}
}

func TestCSVImporter_RunRejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"missing price": "id,name,price,currency\n1,Mug,,USD\n",
		"bad id":        "id,name,price,currency\nabc,Mug,1.00,USD\n",
		"bad price":     "id,name,price,currency\n1,Mug,cheap,USD\n",
		"bad stock":     "id,name,price,currency,stock\n1,Mug,1.00,USD,lots\n",
		"no id column":  "name,price,currency\nMug,1.00,USD\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVImporter(strings.NewReader(data), &stubCatalog{}).Run(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCSVImporter_RunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCSVImporter(strings.NewReader("id,name,price,currency\n1,Mug,1,USD\n"), &stubCatalog{}).Run(ctx)
	if err == nil {
		t.Fatalf("expected context error")
	}
}
