package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/webpiratt/dca-protocol/common"
	"github.com/webpiratt/dca-protocol/internal/types"
)

func parseAddress(s string) (ecommon.Address, error) {
	if !ecommon.IsHexAddress(s) {
		return ecommon.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return ecommon.HexToAddress(s), nil
}

func parseAddresses(in []string) ([]ecommon.Address, error) {
	out := make([]ecommon.Address, len(in))
	for i, s := range in {
		addr, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func parseHash(s string) (ecommon.Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return ecommon.Hash{}, fmt.Errorf("invalid schedule id %q", s)
	}
	return ecommon.HexToHash(s), nil
}

// callerAddress extracts the acting account from the x-account header. The
// execution environment in front of this service has already authenticated
// it; signature schemes are out of scope here.
func (s *Server) callerAddress(c echo.Context) (ecommon.Address, error) {
	account := c.Request().Header.Get("x-account")
	if account == "" {
		return ecommon.Address{}, fmt.Errorf("x-account header is required")
	}
	return parseAddress(account)
}

type CreateScheduleRequest struct {
	Token                string `json:"token" validate:"required"`
	DepositAmount        string `json:"deposit_amount" validate:"required"`
	PurchaseAmount       string `json:"purchase_amount" validate:"required"`
	PurchasePeriod       uint64 `json:"purchase_period" validate:"required"`
	LendingProtocolIndex uint64 `json:"lending_protocol_index"`
}

func (s *Server) CreateSchedule(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req CreateScheduleRequest
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
	deposit, err := common.ParseAmount(req.DepositAmount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	purchaseAmount, err := common.ParseAmount(req.PurchaseAmount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	sched, index, err := s.manager.CreateSchedule(c.Request().Context(), owner, token, deposit, purchaseAmount, req.PurchasePeriod, req.LendingProtocolIndex)
	if err != nil {
		s.logger.WithError(err).Error("failed to create schedule")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"schedule": sched,
		"index":    index,
	})
}

type UpdateScheduleRequest struct {
	Token          string `json:"token" validate:"required"`
	ScheduleIndex  int    `json:"schedule_index"`
	ScheduleID     string `json:"schedule_id" validate:"required"`
	DepositAmount  string `json:"deposit_amount"`
	PurchaseAmount string `json:"purchase_amount"`
	PurchasePeriod uint64 `json:"purchase_period"`
}

func (s *Server) UpdateSchedule(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req UpdateScheduleRequest
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
	id, err := parseHash(req.ScheduleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	deposit, err := common.ParseOptionalAmount(req.DepositAmount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	purchaseAmount, err := common.ParseOptionalAmount(req.PurchaseAmount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	sched, err := s.manager.UpdateSchedule(c.Request().Context(), owner, token, req.ScheduleIndex, id, deposit, purchaseAmount, req.PurchasePeriod)
	if err != nil {
		s.logger.WithError(err).Error("failed to update schedule")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}

	return c.JSON(http.StatusOK, sched)
}

func (s *Server) DeleteSchedule(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid schedule index"))
	}

	var reqBody struct {
		ScheduleID string `json:"schedule_id"`
	}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	id, err := parseHash(reqBody.ScheduleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.DeleteSchedule(c.Request().Context(), owner, token, index, id); err != nil {
		s.logger.WithError(err).Error("failed to delete schedule")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) GetSchedules(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, s.manager.GetSchedules(owner, token))
}

func (s *Server) GetSchedule(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid schedule index"))
	}

	sched, err := s.manager.GetSchedule(owner, token, index)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, sched)
}

func (s *Server) GetPurchaseHistory(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid schedule index"))
	}

	sched, err := s.manager.GetSchedule(owner, token, index)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	}

	history, err := s.db.GetPurchaseHistory(c.Request().Context(), sched.ScheduleID, 30, 0)
	if err != nil {
		s.logger.WithError(err).
			WithField("schedule_id", sched.ScheduleID.Hex()).
			Error("failed to get purchase history")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to get purchase history"))
	}
	return c.JSON(http.StatusOK, history)
}

func (s *Server) GetScheduleEvents(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	token, err := parseAddress(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid schedule index"))
	}

	sched, err := s.manager.GetSchedule(owner, token, index)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	}

	events, err := s.db.GetEvents(c.Request().Context(), sched.ScheduleID, 30, 0)
	if err != nil {
		s.logger.WithError(err).
			WithField("schedule_id", sched.ScheduleID.Hex()).
			Error("failed to get schedule events")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to get schedule events"))
	}
	return c.JSON(http.StatusOK, events)
}

type BalanceChangeRequest struct {
	Token         string `json:"token" validate:"required"`
	ScheduleIndex int    `json:"schedule_index"`
	ScheduleID    string `json:"schedule_id" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
}

func (s *Server) DepositToken(c echo.Context) error {
	return s.balanceChange(c, true)
}

func (s *Server) WithdrawToken(c echo.Context) error {
	return s.balanceChange(c, false)
}

func (s *Server) balanceChange(c echo.Context, deposit bool) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req BalanceChangeRequest
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
	id, err := parseHash(req.ScheduleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	amount, err := common.ParseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var sched *types.Schedule
	if deposit {
		sched, err = s.manager.DepositToken(c.Request().Context(), owner, token, req.ScheduleIndex, id, amount)
	} else {
		sched, err = s.manager.WithdrawToken(c.Request().Context(), owner, token, req.ScheduleIndex, id, amount)
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to change schedule balance")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, sched)
}

func (s *Server) SetPurchaseAmount(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req BalanceChangeRequest
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
	id, err := parseHash(req.ScheduleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	amount, err := common.ParseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	sched, err := s.manager.SetPurchaseAmount(c.Request().Context(), owner, token, req.ScheduleIndex, id, amount)
	if err != nil {
		s.logger.WithError(err).Error("failed to set purchase amount")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, sched)
}

type SetPurchasePeriodRequest struct {
	Token          string `json:"token" validate:"required"`
	ScheduleIndex  int    `json:"schedule_index"`
	ScheduleID     string `json:"schedule_id" validate:"required"`
	PurchasePeriod uint64 `json:"purchase_period" validate:"required"`
}

func (s *Server) SetPurchasePeriod(c echo.Context) error {
	owner, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req SetPurchasePeriodRequest
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
	id, err := parseHash(req.ScheduleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	sched, err := s.manager.SetPurchasePeriod(c.Request().Context(), owner, token, req.ScheduleIndex, id, req.PurchasePeriod)
	if err != nil {
		s.logger.WithError(err).Error("failed to set purchase period")
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, sched)
}
