package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ikkim/shopcore-backend/config"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/db"
	"github.com/ikkim/shopcore-backend/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <catalog.xlsx>")
	}
	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: "info", Format: "console", EnableColor: true})

	conn, err := db.Open(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close(conn)

	if err := db.Migrate(conn); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open catalog:", err)
	}
	defer file.Close()

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, skipped, err := readCatalog(file)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	fmt.Printf("Products to import: %d (skipped rows: %d)\n", len(products), skipped)

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	productService := service.NewProductService(repository.NewProductRepository(conn))
	imported, err := importCatalog(productService, products)
	if err != nil {
		log.Fatal("Import stopped:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", imported)
}

// importCatalog creates missing colors by name, then one product per entry.
func importCatalog(products service.ProductService, catalog []*catalogProduct) (int, error) {
	existing, err := products.ListColors()
	if err != nil {
		return 0, err
	}
	colorIDs := make(map[string]uint, len(existing))
	for _, c := range existing {
		colorIDs[strings.ToLower(c.Name)] = c.ID
	}

	imported := 0
	for _, entry := range catalog {
		input := service.CreateProductInput{
			Name:        entry.Name,
			Description: entry.Description,
			Price:       entry.Price,
			SalePrice:   entry.SalePrice,
			Images:      entry.Images,
		}
		for _, v := range entry.Variants {
			id, ok := colorIDs[strings.ToLower(v.Color)]
			if !ok {
				color, err := products.CreateColor(v.Color, v.Hex)
				if err != nil {
					return imported, fmt.Errorf("color %q: %w", v.Color, err)
				}
				id = color.ID
				colorIDs[strings.ToLower(v.Color)] = id
			}
			input.Variants = append(input.Variants, service.VariantInput{
				ColorID:  id,
				Size:     v.Size,
				Quantity: v.Quantity,
			})
		}

		if _, err := products.CreateProduct(input); err != nil {
			return imported, fmt.Errorf("product %q: %w", entry.Name, err)
		}
		imported++
	}
	return imported, nil
}
