package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"

	"github.com/webpiratt/dca-protocol/internal/tasks"
	"github.com/webpiratt/dca-protocol/internal/types"
)

type BuyRequest struct {
	Owner         string `json:"owner" validate:"required"`
	Token         string `json:"token" validate:"required"`
	ScheduleIndex int    `json:"schedule_index"`
	ScheduleID    string `json:"schedule_id" validate:"required"`
}

// BuyRbtc executes one purchase synchronously. The caller identified by the
// x-account header must hold the swapper role.
func (s *Server) BuyRbtc(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req BuyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	owner, err := parseAddress(req.Owner)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	id, err := parseHash(req.ScheduleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	hist, err := s.manager.BuyRbtc(c.Request().Context(), caller, owner, token, req.ScheduleIndex, id)
	if err != nil {
		s.logger.WithError(err).
			WithField("schedule_id", req.ScheduleID).
			Error("purchase failed")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, hist)
}

// SubmitBatchPurchase enqueues a settlement batch for asynchronous execution
// on the worker. The request id deduplicates resubmissions of the same batch.
func (s *Server) SubmitBatchPurchase(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req types.BatchPurchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	req.Swapper = caller.Hex()
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	ctx := c.Request().Context()
	dedupKey := fmt.Sprintf("batch:%s", req.RequestID)
	if _, err := s.redis.Get(ctx, dedupKey); err == nil {
		return c.JSON(http.StatusConflict, NewErrorResponse("batch already submitted"))
	}
	if err := s.redis.Set(ctx, dedupKey, req.RequestID, time.Hour); err != nil {
		s.logger.WithError(err).Error("failed to set batch dedup key")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to encode batch"))
	}

	ti, err := s.client.EnqueueContext(ctx,
		asynq.NewTask(tasks.TypeBatchPurchase, payload),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(5*time.Minute),
		asynq.Queue(tasks.QUEUE_NAME))
	if err != nil {
		if delErr := s.redis.Delete(ctx, dedupKey); delErr != nil {
			s.logger.WithError(delErr).Error("failed to clear batch dedup key")
		}
		s.logger.WithError(err).Error("failed to enqueue batch purchase")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to enqueue batch purchase"))
	}

	return c.JSON(http.StatusOK, echo.Map{"task_id": ti.ID})
}

// GetBatchPurchaseResult polls the outcome of an enqueued batch.
func (s *Server) GetBatchPurchaseResult(c echo.Context) error {
	taskID := c.Param("taskId")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("task id is required"))
	}

	result, err := tasks.GetTaskResult(s.inspector, taskID)
	if err != nil {
		if err.Error() == "task is still in progress" {
			return c.JSON(http.StatusAccepted, NewErrorResponse(err.Error()))
		}
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSONBlob(http.StatusOK, result)
}

func (s *Server) withdrawalParams(c echo.Context) (owner, token string, idx uint64, err error) {
	owner = c.Request().Header.Get("x-account")
	token = c.QueryParam("token")
	idxStr := c.QueryParam("lending_protocol_index")
	if idxStr == "" {
		idxStr = "0"
	}
	idx, err = strconv.ParseUint(idxStr, 10, 64)
	return owner, token, idx, err
}

// GetAccruedInterest reports claimable interest for one (token, protocol)
// pair without moving funds.
func (s *Server) GetAccruedInterest(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	_, tokenStr, idx, err := s.withdrawalParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid lending protocol index"))
	}
	token, err := parseAddress(tokenStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	interest, err := s.manager.AccruedInterest(c.Request().Context(), caller, token, idx)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, echo.Map{"interest": interest.String()})
}

type WithdrawInterestRequest struct {
	Token                string `json:"token" validate:"required"`
	LendingProtocolIndex uint64 `json:"lending_protocol_index"`
}

func (s *Server) WithdrawInterest(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req WithdrawInterestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.WithdrawInterest(c.Request().Context(), caller, token, req.LendingProtocolIndex); err != nil {
		s.logger.WithError(err).Error("interest withdrawal failed")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

type WithdrawAllRequest struct {
	Tokens                 []string `json:"tokens" validate:"required,min=1"`
	LendingProtocolIndexes []uint64 `json:"lending_protocol_indexes" validate:"required,min=1"`
}

func (s *Server) withdrawAllParams(c echo.Context) (tokens []string, indexes []uint64, err error) {
	var req WithdrawAllRequest
	if err := c.Bind(&req); err != nil {
		return nil, nil, fmt.Errorf("fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return nil, nil, err
	}
	return req.Tokens, req.LendingProtocolIndexes, nil
}

func (s *Server) WithdrawAllInterest(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	tokenStrs, indexes, err := s.withdrawAllParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	addrs, err := parseAddresses(tokenStrs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.WithdrawAllAccumulatedInterest(c.Request().Context(), caller, addrs, indexes); err != nil {
		s.logger.WithError(err).Error("bulk interest withdrawal failed")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) GetAccumulatedRbtc(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	_, tokenStr, idx, err := s.withdrawalParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid lending protocol index"))
	}
	token, err := parseAddress(tokenStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	balance, err := s.manager.AccumulatedRbtc(c.Request().Context(), caller, token, idx)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": balance.String()})
}

func (s *Server) WithdrawRbtc(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req WithdrawInterestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.WithdrawRbtc(c.Request().Context(), caller, token, req.LendingProtocolIndex); err != nil {
		s.logger.WithError(err).Error("asset withdrawal failed")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) WithdrawAllRbtc(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	tokenStrs, indexes, err := s.withdrawAllParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	addrs, err := parseAddresses(tokenStrs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.WithdrawAllAccumulatedRbtc(c.Request().Context(), caller, addrs, indexes); err != nil {
		s.logger.WithError(err).Error("bulk asset withdrawal failed")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}
