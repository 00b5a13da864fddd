package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/webpiratt/dca-protocol/common"
)

type SetMinPurchasePeriodRequest struct {
	Period uint64 `json:"period" validate:"required"`
}

func (s *Server) SetMinPurchasePeriod(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req SetMinPurchasePeriodRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.SetMinPurchasePeriod(c.Request().Context(), caller, req.Period); err != nil {
		return c.JSON(http.StatusForbidden, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

type SetMaxSchedulesRequest struct {
	Max int `json:"max" validate:"required,min=1"`
}

func (s *Server) SetMaxSchedulesPerToken(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req SetMaxSchedulesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.SetMaxSchedulesPerToken(c.Request().Context(), caller, req.Max); err != nil {
		return c.JSON(http.StatusForbidden, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

type SetMinPurchaseAmountRequest struct {
	Amount string `json:"amount" validate:"required"`
	// Token scopes the minimum to one token; empty applies the default.
	Token string `json:"token"`
}

func (s *Server) SetMinPurchaseAmount(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req SetMinPurchaseAmountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	amount, err := common.ParseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	ctx := c.Request().Context()
	if req.Token != "" {
		token, err := parseAddress(req.Token)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		}
		if err := s.manager.SetMinPurchaseAmountForToken(ctx, caller, token, amount); err != nil {
			return c.JSON(http.StatusForbidden, NewErrorResponse(err.Error()))
		}
		return c.NoContent(http.StatusNoContent)
	}

	if err := s.manager.SetMinPurchaseAmount(ctx, caller, amount); err != nil {
		return c.JSON(http.StatusForbidden, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

// Zero rates are legal, so the curve endpoints carry no required tags; the
// calculator rejects inverted configurations.
type SetFeeRatesRequest struct {
	MinFeeRate uint64 `json:"min_fee_rate"`
	MaxFeeRate uint64 `json:"max_fee_rate"`
}

func (s *Server) SetFeeRates(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req SetFeeRatesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.SetFeeRates(c.Request().Context(), caller, req.MinFeeRate, req.MaxFeeRate); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

type SetFeeBoundsRequest struct {
	LowerBound string `json:"lower_bound" validate:"required"`
	UpperBound string `json:"upper_bound" validate:"required"`
}

func (s *Server) SetFeeBounds(c echo.Context) error {
	caller, err := s.callerAddress(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	var req SetFeeBoundsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	lower, err := common.ParseAmount(req.LowerBound)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	upper, err := common.ParseAmount(req.UpperBound)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	if err := s.manager.SetFeeBounds(c.Request().Context(), caller, lower, upper); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

// BackupSchedules dumps the persisted schedule table to block storage as a
// timestamped JSON snapshot.
func (s *Server) BackupSchedules(c echo.Context) error {
	if _, err := s.callerAddress(c); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	if s.blockStorage == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("block storage is not configured"))
	}

	ctx := c.Request().Context()
	schedules, err := s.db.ListSchedules(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list schedules for backup")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to list schedules"))
	}

	content, err := json.Marshal(schedules)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to encode snapshot"))
	}

	fileName := fmt.Sprintf("schedules-%s.json", time.Now().UTC().Format("20060102T150405"))
	if err := s.blockStorage.UploadFile(content, fileName); err != nil {
		s.logger.WithError(err).Error("failed to upload snapshot")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to upload snapshot"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"file":      fileName,
		"schedules": len(schedules),
	})
}
