package cache

import (
	"context"
	"fmt"

	"github.com/amplifihq/coinswap/internal/models"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// ClickHouseStore persists execution telemetry for offline analysis. Every
// orchestrated swap lands here, failures included.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Entry
}

func NewClickHouseStore(addr, database, username, password string, logger *logrus.Logger) (*ClickHouseStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if database == "" {
		database = "swaps"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.WithField("addr", addr).Info("connected to ClickHouse")

	return &ClickHouseStore{
		conn:   conn,
		logger: logger.WithField("component", "clickhouse"),
	}, nil
}

func (c *ClickHouseStore) InsertExecution(ctx context.Context, record *models.SwapExecutionRecord) error {
	query := `
		INSERT INTO swap_executions (
			signature, first_leg_signature, timestamp, owner,
			input_mint, output_mint, input_amount, output_amount,
			route, status, stage, error_kind, error_message,
			stranded_mint, stranded_amount, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		record.Signature,
		record.FirstLegSignature,
		record.Timestamp,
		record.Owner,
		record.InputMint,
		record.OutputMint,
		record.InputAmount,
		record.OutputAmount,
		record.Route,
		record.Status,
		record.Stage,
		record.ErrorKind,
		record.ErrorMessage,
		record.StrandedMint,
		record.StrandedAmount,
		record.DurationMS,
	)

	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	return nil
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
