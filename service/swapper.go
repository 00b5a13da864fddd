package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/common"
	"github.com/webpiratt/dca-protocol/config"
	"github.com/webpiratt/dca-protocol/internal/dca"
	"github.com/webpiratt/dca-protocol/internal/types"
	"github.com/webpiratt/dca-protocol/storage"
)

// WorkerService consumes batch purchase tasks from the queue and settles them
// through the manager.
type WorkerService struct {
	cfg      *config.Config
	manager  *dca.Manager
	db       storage.DatabaseStorage
	redis    *storage.RedisStorage
	sdClient *statsd.Client
	logger   *logrus.Logger
}

func NewWorker(cfg *config.Config, manager *dca.Manager, db storage.DatabaseStorage, redis *storage.RedisStorage, sdClient *statsd.Client) *WorkerService {
	return &WorkerService{
		cfg:      cfg,
		manager:  manager,
		db:       db,
		redis:    redis,
		sdClient: sdClient,
		logger:   logrus.WithField("service", "worker").Logger,
	}
}

func (s *WorkerService) incCounter(name string, tags []string) {
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (s *WorkerService) measureTime(name string, start time.Time, tags []string) {
	if err := s.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		s.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

type BatchPurchaseTaskResult struct {
	RequestID string   `json:"request_id"`
	Entries   int      `json:"entries"`
	Purchases []string `json:"purchases"`
}

// HandleBatchPurchase settles one batch. Validation and authorization errors
// are terminal; retrying a rejected batch cannot make it pass.
func (s *WorkerService) HandleBatchPurchase(ctx context.Context, t *asynq.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.measureTime("worker.batch_purchase.latency", time.Now(), []string{})

	var req types.BatchPurchaseRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		s.incCounter("worker.batch_purchase.error", []string{"reason:decode"})
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"token":      req.Token,
		"entries":    len(req.Entries),
	}).Info("settling batch purchase")

	swapper := ecommon.HexToAddress(req.Swapper)
	token := ecommon.HexToAddress(req.Token)

	buyers := make([]ecommon.Address, len(req.Entries))
	indexes := make([]int, len(req.Entries))
	ids := make([]ecommon.Hash, len(req.Entries))
	amounts := make([]*big.Int, len(req.Entries))
	for i, entry := range req.Entries {
		amount, err := common.ParseAmount(entry.DeclaredAmount)
		if err != nil {
			s.incCounter("worker.batch_purchase.error", []string{"reason:amount"})
			return fmt.Errorf("invalid declared amount at entry %d: %v: %w", i, err, asynq.SkipRetry)
		}
		buyers[i] = ecommon.HexToAddress(entry.Buyer)
		indexes[i] = entry.ScheduleIndex
		ids[i] = ecommon.HexToHash(entry.ScheduleID)
		amounts[i] = amount
	}

	history, err := s.manager.BatchBuyRbtc(ctx, swapper, token, buyers, indexes, ids, amounts, req.LendingProtocolIndex)
	if err != nil {
		s.incCounter("worker.batch_purchase.error", []string{"reason:settlement"})
		s.logger.WithError(err).
			WithField("request_id", req.RequestID).
			Error("batch settlement failed")
		return fmt.Errorf("batch settlement failed: %v: %w", err, asynq.SkipRetry)
	}

	result := BatchPurchaseTaskResult{
		RequestID: req.RequestID,
		Entries:   len(history),
		Purchases: make([]string, len(history)),
	}
	for i, h := range history {
		result.Purchases[i] = h.ScheduleID.Hex()
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("json.Marshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := t.ResultWriter().Write(resultBytes); err != nil {
		return fmt.Errorf("t.ResultWriter.Write failed: %v: %w", err, asynq.SkipRetry)
	}

	s.incCounter("worker.batch_purchase.settled", []string{})
	return nil
}
