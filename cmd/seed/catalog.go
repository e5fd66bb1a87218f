package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Catalog sheet columns, header row first:
// product | description | price | sale_price | color | hex | size | quantity | images
const (
	colProduct = iota
	colDescription
	colPrice
	colSalePrice
	colColor
	colHex
	colSize
	colQuantity
	colImages
	minColumns = colQuantity + 1
)

type catalogVariant struct {
	Color    string
	Hex      string
	Size     string
	Quantity int
}

type catalogProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	Images      []string
	Variants    []catalogVariant
}

// readCatalog groups sheet rows by product name in first-seen order. Rows
// that cannot be parsed are counted in skipped.
func readCatalog(r io.Reader) (products []*catalogProduct, skipped int, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	byName := make(map[string]*catalogProduct)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < minColumns {
			skipped++
			continue
		}

		name := strings.TrimSpace(row[colProduct])
		color := strings.TrimSpace(row[colColor])
		size := strings.ToUpper(strings.TrimSpace(row[colSize]))
		if name == "" || color == "" || size == "" {
			skipped++
			continue
		}

		quantity, err := strconv.Atoi(strings.TrimSpace(row[colQuantity]))
		if err != nil || quantity < 0 {
			skipped++
			continue
		}

		product, ok := byName[name]
		if !ok {
			price, err := decimal.NewFromString(strings.TrimSpace(row[colPrice]))
			if err != nil || !price.IsPositive() {
				skipped++
				continue
			}
			product = &catalogProduct{
				Name:        name,
				Description: strings.TrimSpace(row[colDescription]),
				Price:       price,
			}
			if raw := strings.TrimSpace(row[colSalePrice]); raw != "" {
				sale, err := decimal.NewFromString(raw)
				if err != nil {
					skipped++
					continue
				}
				product.SalePrice = &sale
			}
			if len(row) > colImages {
				product.Images = splitImages(row[colImages])
			}
			byName[name] = product
			products = append(products, product)
		}

		product.Variants = append(product.Variants, catalogVariant{
			Color:    color,
			Hex:      strings.TrimSpace(row[colHex]),
			Size:     size,
			Quantity: quantity,
		})
	}
	return products, skipped, nil
}

func splitImages(raw string) []string {
	var images []string
	for _, part := range strings.Split(raw, ",") {
		if url := strings.TrimSpace(part); url != "" {
			images = append(images, url)
		}
	}
	return images
}
