package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories/sqlstore"
	"github.com/upfront-market/api/internal/services"
)

type seedFile struct {
	Users      []seedUser     `json:"users"`
	Vendors    []seedVendor   `json:"vendors"`
	Categories []seedCategory `json:"categories"`
	Products   []seedProduct  `json:"products"`
}

type seedUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

type seedVendor struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Slug   string `json:"slug"`
	Image  string `json:"image"`
	Mobile string `json:"mobile"`
	Active *bool  `json:"active"`
}

type seedCategory struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Image  string `json:"image"`
	Active *bool  `json:"active"`
}

type seedSize struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type seedColor struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type seedProduct struct {
	ID             string          `json:"id"`
	VendorID       string          `json:"vendor_id"`
	CategoryID     string          `json:"category_id"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
	Price          decimal.Decimal `json:"price"`
	RegularPrice   decimal.Decimal `json:"regular_price"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	Stock          int             `json:"stock"`
	Status         string          `json:"status"`
	Featured       bool            `json:"featured"`
	Sizes          []seedSize      `json:"sizes"`
	Colors         []seedColor     `json:"colors"`
	Gallery        []string        `json:"gallery"`
}

type seedSummary struct {
	Users      int
	Vendors    int
	Categories int
	Products   int
}

func readSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, fmt.Errorf("catalog import: read %s: %w", path, err)
	}
	var seed seedFile
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&seed); err != nil {
		return seedFile{}, fmt.Errorf("catalog import: decode %s: %w", path, err)
	}
	return seed, nil
}

// importSeed writes the seed in dependency order inside one transaction.
func importSeed(ctx context.Context, reg *sqlstore.Registry, seed seedFile) (seedSummary, error) {
	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Vendors:  reg.Vendors(),
	})
	if err != nil {
		return seedSummary{}, err
	}

	var summary seedSummary
	err = reg.RunInTx(ctx, func(ctx context.Context) error {
		for _, u := range seed.Users {
			if _, err := reg.Users().Save(ctx, domain.User{
				ID:       idOrNew(u.ID),
				Email:    strings.TrimSpace(u.Email),
				FullName: strings.TrimSpace(u.FullName),
				IsAdmin:  u.IsAdmin,
			}); err != nil {
				return fmt.Errorf("user %q: %w", u.Email, err)
			}
			summary.Users++
		}
		for _, v := range seed.Vendors {
			if _, err := reg.Vendors().Save(ctx, domain.Vendor{
				ID:        idOrNew(v.ID),
				UserID:    strings.TrimSpace(v.UserID),
				Name:      strings.TrimSpace(v.Name),
				Email:     strings.TrimSpace(v.Email),
				Slug:      strings.ToLower(strings.TrimSpace(v.Slug)),
				Image:     v.Image,
				Mobile:    v.Mobile,
				Active:    boolOrTrue(v.Active),
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return fmt.Errorf("vendor %q: %w", v.Slug, err)
			}
			summary.Vendors++
		}
		for _, c := range seed.Categories {
			if _, err := catalog.SaveCategory(ctx, services.Category{
				ID:     c.ID,
				Title:  c.Title,
				Slug:   c.Slug,
				Image:  c.Image,
				Active: boolOrTrue(c.Active),
			}); err != nil {
				return fmt.Errorf("category %q: %w", c.Slug, err)
			}
			summary.Categories++
		}
		for _, p := range seed.Products {
			product := services.Product{
				ID:             p.ID,
				VendorID:       p.VendorID,
				CategoryID:     p.CategoryID,
				Title:          p.Title,
				Slug:           p.Slug,
				Description:    p.Description,
				Image:          p.Image,
				Price:          p.Price,
				RegularPrice:   p.RegularPrice,
				ShippingAmount: p.ShippingAmount,
				Stock:          p.Stock,
				Status:         domain.ProductStatus(strings.ToLower(strings.TrimSpace(p.Status))),
				Featured:       p.Featured,
				Gallery:        p.Gallery,
			}
			for _, s := range p.Sizes {
				product.Sizes = append(product.Sizes, domain.ProductSize{Name: s.Name, Price: s.Price})
			}
			for _, c := range p.Colors {
				product.Colors = append(product.Colors, domain.ProductColor{Name: c.Name, Code: c.Code})
			}
			if _, err := catalog.SaveProduct(ctx, product); err != nil {
				return fmt.Errorf("product %q: %w", p.Slug, err)
			}
			summary.Products++
		}
		return nil
	})
	if err != nil {
		return seedSummary{}, fmt.Errorf("catalog import: %w", err)
	}
	return summary, nil
}

func idOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return ulid.Make().String()
}

func boolOrTrue(v *bool) bool {
	return v == nil || *v
}
