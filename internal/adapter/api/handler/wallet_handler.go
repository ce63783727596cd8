package handler

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/usecase"
	"fanlink/pkg/response"
	"fanlink/pkg/utils"
)

type WalletHandler struct {
	walletUseCase *usecase.WalletUseCase
	webhookSecret string
}

func NewWalletHandler(walletUseCase *usecase.WalletUseCase, webhookSecret string) *WalletHandler {
	return &WalletHandler{
		walletUseCase: walletUseCase,
		webhookSecret: webhookSecret,
	}
}

type creditWebhookRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Reference   string `json:"reference"`
	ProcessorID string `json:"processor_id"`
}

// GetBalance returns the caller's wallet; zero balance if none exists yet.
func (h *WalletHandler) GetBalance(c echo.Context) error {
	userID := c.Get("uid").(string)

	wallet, err := h.walletUseCase.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, wallet)
}

// ListTransactions returns the caller's ledger history, most recent first.
func (h *WalletHandler) ListTransactions(c echo.Context) error {
	userID := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	entries, err := h.walletUseCase.ListTransactions(c.Request().Context(), userID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, entries)
}

// GetEarnings summarizes the caller's creator earnings from the ledger.
func (h *WalletHandler) GetEarnings(c echo.Context) error {
	userID := c.Get("uid").(string)

	summary, err := h.walletUseCase.GetEarnings(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, summary)
}

// HandleCreditWebhook accepts an already-verified credit instruction from
// the payment processor. The processor confirms the money before calling;
// this endpoint only records it. Authenticated by a shared webhook secret,
// not a user token.
func (h *WalletHandler) HandleCreditWebhook(c echo.Context) error {
	if h.webhookSecret == "" || c.Request().Header.Get("X-Webhook-Secret") != h.webhookSecret {
		return echo.NewHTTPError(401, "Invalid webhook secret")
	}

	var req creditWebhookRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	reason := "topup"
	if req.Reference != "" {
		reason = "topup:" + req.Reference
	}

	entry, err := h.walletUseCase.Credit(c.Request().Context(), usecase.CreditWalletInput{
		UserID:       req.UserID,
		Amount:       req.Amount,
		Reason:       reason,
		Counterparty: req.ProcessorID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, entry)
}
