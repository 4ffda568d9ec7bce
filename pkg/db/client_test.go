package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type txProbe struct {
	ID    uint   `gorm:"primaryKey"`
	Label string `gorm:"column:label"`
}

func openTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&txProbe{}))
	return FromGorm(conn)
}

func TestWithTxCommits(t *testing.T) {
	client := openTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&txProbe{Label: "kept"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&txProbe{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client := openTestClient(t)
	boom := errors.New("boom")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&txProbe{Label: "discarded"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, client.DB().Model(&txProbe{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openTestClient(t)

	require.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&txProbe{Label: "discarded"}).Error; err != nil {
				return err
			}
			panic("lost connection mid-flight")
		})
	})

	var count int64
	require.NoError(t, client.DB().Model(&txProbe{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestPing(t *testing.T) {
	client := openTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}
