// Package db persists execution history and the daily-loss accumulator
// with GORM over MySQL: AutoMigrate at startup, one row type per
// concern, a handful of query helpers.
package db

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	evmarb "evmarb"
)

// ExecutionRecordRow is the database model for evmarb.ExecutionRecord.
type ExecutionRecordRow struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	OpportunityID  string    `gorm:"index;not null"`
	ChainID        uint64    `gorm:"index;not null"`
	Outcome        int       `gorm:"not null;comment:ExecutionOutcome as integer"`
	TxHash         string    `gorm:"index"`
	ErrorKind      string    `gorm:"comment:errs.Kind name, empty if none"`
	ActualProfit   string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	GasUsed        uint64    `gorm:"not null"`
	BlockNumber    uint64    `gorm:"not null"`
	SubmittedAt    time.Time `gorm:"index;not null"`
	ConfirmedAt    time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (ExecutionRecordRow) TableName() string {
	return "execution_records"
}

// DailyLossRow persists DailyLossAccumulator state across process
// restarts, so a hard pause survives a crash-and-restart.
type DailyLossRow struct {
	ChainID     uint64    `gorm:"primaryKey"`
	ResetAt     time.Time `gorm:"not null"`
	RunningLoss string    `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (DailyLossRow) TableName() string {
	return "daily_loss_accumulators"
}

// MySQLRecorder persists ExecutionRecords and DailyLossAccumulator state
// using GORM and MySQL.
type MySQLRecorder struct {
	db *gorm.DB
}

// NewMySQLRecorder opens dsn and migrates the execution-history schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLRecorder(dsn string) (*MySQLRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if err := db.AutoMigrate(&ExecutionRecordRow{}, &DailyLossRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &MySQLRecorder{db: db}, nil
}

// NewMySQLRecorderWithDB wraps an already-open GORM DB instance.
func NewMySQLRecorderWithDB(db *gorm.DB) (*MySQLRecorder, error) {
	if err := db.AutoMigrate(&ExecutionRecordRow{}, &DailyLossRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLRecorder{db: db}, nil
}

// RecordExecution persists one completed (or disqualified/failed) opportunity
// execution.
func (r *MySQLRecorder) RecordExecution(rec evmarb.ExecutionRecord) error {
	row := ExecutionRecordRow{
		OpportunityID: string(rec.OpportunityID),
		ChainID:       uint64(rec.ChainID),
		Outcome:       int(rec.Outcome),
		TxHash:        rec.TxHash.Hex(),
		ErrorKind:     rec.ErrorKind,
		ActualProfit:  bigIntToString(rec.ActualProfit),
		GasUsed:       rec.GasUsed,
		BlockNumber:   rec.BlockNumber,
		SubmittedAt:   rec.SubmittedAt,
		ConfirmedAt:   rec.ConfirmedAt,
	}

	if result := r.db.Create(&row); result.Error != nil {
		return fmt.Errorf("failed to record execution: %w", result.Error)
	}
	return nil
}

// LoadDailyLoss returns the persisted accumulator for chainID, or a fresh
// zero accumulator if none exists yet.
func (r *MySQLRecorder) LoadDailyLoss(chainID evmarb.ChainID, now time.Time) (evmarb.DailyLossAccumulator, error) {
	var row DailyLossRow
	result := r.db.First(&row, "chain_id = ?", uint64(chainID))
	if result.Error == gorm.ErrRecordNotFound {
		return evmarb.DailyLossAccumulator{ResetAt: now, RunningLoss: big.NewInt(0)}, nil
	}
	if result.Error != nil {
		return evmarb.DailyLossAccumulator{}, fmt.Errorf("failed to load daily loss accumulator: %w", result.Error)
	}
	loss, ok := new(big.Int).SetString(row.RunningLoss, 10)
	if !ok {
		loss = big.NewInt(0)
	}
	return evmarb.DailyLossAccumulator{ResetAt: row.ResetAt, RunningLoss: loss}, nil
}

// SaveDailyLoss upserts the accumulator state for chainID.
func (r *MySQLRecorder) SaveDailyLoss(chainID evmarb.ChainID, acc evmarb.DailyLossAccumulator) error {
	row := DailyLossRow{
		ChainID:     uint64(chainID),
		ResetAt:     acc.ResetAt,
		RunningLoss: bigIntToString(acc.RunningLoss),
	}
	result := r.db.Save(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to save daily loss accumulator: %w", result.Error)
	}
	return nil
}

// RecentExecutions returns the n most recently submitted execution records
// for chainID, newest first.
func (r *MySQLRecorder) RecentExecutions(chainID evmarb.ChainID, n int) ([]ExecutionRecordRow, error) {
	var rows []ExecutionRecordRow
	result := r.db.Where("chain_id = ?", uint64(chainID)).
		Order("submitted_at DESC").
		Limit(n).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get recent executions: %w", result.Error)
	}
	return rows, nil
}

// GetDB returns the underlying GORM DB instance for advanced queries.
func (r *MySQLRecorder) GetDB() *gorm.DB {
	return r.db
}

// Close closes the database connection.
func (r *MySQLRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

func bigIntToString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
