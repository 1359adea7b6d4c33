package services

import (
	"context"
	"errors"
	"fmt"
	"reportrelay/internal/metrics"
	"reportrelay/internal/models"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSubmissionNotFound = errors.New("submission not found")

const (
	journalQueueSize     = 1000
	journalBatchSize     = 50
	journalFlushInterval = 500 * time.Millisecond
)

// Journal writes submission outcomes to the database in the background so a
// slow database never holds up an HTTP response.
type Journal struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.Metrics

	queue chan *models.Submission // 待写入的提交记录
	quit  chan struct{}
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewJournal starts the background writer. Call Close to flush and stop it.
func NewJournal(db *gorm.DB, m *metrics.Metrics, logger *zap.Logger) *Journal {
	if m == nil {
		m = metrics.New(nil)
	}
	j := &Journal{
		db:      db,
		logger:  logger,
		metrics: m,
		queue:   make(chan *models.Submission, journalQueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go j.worker()
	return j
}

// Record queues s without blocking. A full or closed journal drops it.
func (j *Journal) Record(s *models.Submission) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.metrics.JournalDropped()
		j.logger.Warn("journal closed, dropping submission", zap.String("tx", s.TxHash))
		return
	}

	select {
	case j.queue <- s:
	default:
		j.metrics.JournalDropped()
		j.logger.Warn("journal queue full, dropping submission", zap.String("tx", s.TxHash))
	}
}

// Close flushes queued entries and stops the writer.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.quit)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker 后台批量写入
func (j *Journal) worker() {
	defer close(j.done)

	batch := make([]*models.Submission, 0, journalBatchSize)
	ticker := time.NewTicker(journalFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-j.queue:
			batch = append(batch, s)
			if len(batch) >= journalBatchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.quit:
			for {
				select {
				case s := <-j.queue:
					batch = append(batch, s)
				default:
					j.flush(batch)
					return
				}
			}
		}
	}
}

func (j *Journal) flush(batch []*models.Submission) {
	if len(batch) == 0 {
		return
	}
	if err := j.db.CreateInBatches(batch, journalBatchSize).Error; err != nil {
		j.logger.Error("failed to write journal batch", zap.Int("size", len(batch)), zap.Error(err))
	}
}

// List returns journal rows newest first, with the total row count.
func (j *Journal) List(ctx context.Context, limit, offset int) ([]models.Submission, int64, error) {
	var total int64
	if err := j.db.WithContext(ctx).Model(&models.Submission{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	var rows []models.Submission
	err := j.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	return rows, total, nil
}

// FindByTx returns the journal row for a transaction hash.
func (j *Journal) FindByTx(ctx context.Context, txHash string) (*models.Submission, error) {
	var row models.Submission
	err := j.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &row, nil
}
