package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/upfront-market/api/internal/platform/config"
)

type widget struct {
	ID   string `gorm:"primaryKey;size:26"`
	Name string `gorm:"uniqueIndex;size:64"`
}

func openTestProvider(t *testing.T) *Provider {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}
	provider, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	require.NoError(t, provider.AutoMigrate(context.Background(), &widget{}))
	return provider
}

func TestWrapErrorClassifies(t *testing.T) {
	var repoErr *Error

	err := WrapError("widgets.find", gorm.ErrRecordNotFound)
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsNotFound())
	assert.Contains(t, err.Error(), "widgets.find")

	err = WrapError("widgets.insert", errors.New("UNIQUE constraint failed: widgets.name"))
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	assert.ErrorIs(t, WrapError("widgets.find", context.Canceled), context.Canceled)
	assert.NoError(t, WrapError("noop", nil))
}

func TestRunTransactionCommitsAndRollsBack(t *testing.T) {
	provider := openTestProvider(t)
	ctx := context.Background()

	err := provider.RunInTx(ctx, func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		return provider.DB(ctx).Create(&widget{ID: "w1", Name: "one"}).Error
	})
	require.NoError(t, err)

	sentinel := errors.New("abort")
	err = provider.RunInTx(ctx, func(ctx context.Context) error {
		if err := provider.DB(ctx).Create(&widget{ID: "w2", Name: "two"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, provider.DB(ctx).Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRunTransactionNestedJoinsOuter(t *testing.T) {
	provider := openTestProvider(t)
	ctx := context.Background()

	err := provider.RunInTx(ctx, func(ctx context.Context) error {
		outer := provider.DB(ctx)
		return provider.RunInTx(ctx, func(inner context.Context) error {
			assert.Same(t, outer, provider.DB(inner))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestRunTransactionDuplicateKeyIsConflict(t *testing.T) {
	provider := openTestProvider(t)
	ctx := context.Background()
	require.NoError(t, provider.DB(ctx).Create(&widget{ID: "w1", Name: "dup"}).Error)

	err := provider.RunInTx(ctx, func(ctx context.Context) error {
		return provider.DB(ctx).Create(&widget{ID: "w2", Name: "dup"}).Error
	})
	var repoErr *Error
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}
