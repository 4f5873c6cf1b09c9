package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/config"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories/sqlstore"
)

const seedJSON = `{
  "users": [{"id": "user-1", "email": "owner@example.com", "full_name": "Clay Owner"}],
  "vendors": [{"id": "vendor-1", "user_id": "user-1", "name": "Clay Co", "email": "shop@example.com", "slug": "Clay-Co"}],
  "categories": [{"id": "cat-1", "title": "Kitchen", "slug": "kitchen"}],
  "products": [{
    "id": "prod-1", "vendor_id": "vendor-1", "category_id": "cat-1",
    "title": "Stoneware Mug", "slug": "stoneware-mug", "price": "10.00",
    "shipping_amount": "2", "stock": 5, "status": "published",
    "sizes": [{"name": "L", "price": "12.50"}]
  }]
}`

func newTestRegistry(t *testing.T) *sqlstore.Registry {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	provider, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver:       database.DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	reg, err := sqlstore.NewRegistry(provider)
	require.NoError(t, err)
	require.NoError(t, reg.Migrate(context.Background()))
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestImportSeed(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	seed, err := readSeedFile(writeSeed(t, seedJSON))
	require.NoError(t, err)

	summary, err := importSeed(ctx, reg, seed)
	require.NoError(t, err)
	assert.Equal(t, seedSummary{Users: 1, Vendors: 1, Categories: 1, Products: 1}, summary)

	vendor, err := reg.Vendors().FindBySlug(ctx, "clay-co")
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", vendor.ID)
	assert.True(t, vendor.Active)

	product, err := reg.Products().FindByID(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Stoneware Mug", product.Title)
	require.Len(t, product.Sizes, 1)
	assert.Equal(t, "12.5", product.Sizes[0].Price.String())
}

func TestImportSeedRollsBackOnInvalidProduct(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	seed, err := readSeedFile(writeSeed(t, `{
  "categories": [{"id": "cat-1", "title": "Kitchen", "slug": "kitchen"}],
  "products": [{"id": "prod-1", "vendor_id": "missing", "title": "Mug", "slug": "mug", "price": "1"}]
}`))
	require.NoError(t, err)

	_, err = importSeed(ctx, reg, seed)
	require.Error(t, err)

	categories, err := reg.Products().ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestReadSeedFileRejectsUnknownFields(t *testing.T) {
	_, err := readSeedFile(writeSeed(t, `{"shops": []}`))
	require.Error(t, err)
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("API_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("API_SECRET_FALLBACK_FILE", filepath.Join(t.TempDir(), "absent"))

	var out bytes.Buffer
	app := newApp(zap.NewNop())
	app.Writer = &out
	err := app.Run(context.Background(), []string{"marketctl", "token", "issue", "--subject", "user-1", "--role", "vendor", "--vendor", "vendor-1"})
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier("test-secret")
	require.NoError(t, err)
	token, err := verifier.VerifyIDToken(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", token.UID)
}

func TestSettingsSetRequiresAFlag(t *testing.T) {
	app := newApp(zap.NewNop())
	err := app.Run(context.Background(), []string{"marketctl", "settings", "set"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}
