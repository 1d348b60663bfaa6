package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/cloudx-io/contentauction/content"
	"github.com/cloudx-io/contentauction/contentapi"
	"github.com/cloudx-io/contentauction/core"
	"github.com/cloudx-io/contentauction/ledger"
	"github.com/cloudx-io/contentauction/rewarder"
)

var errInvalidRequest = errors.New("invalid request")

// responder is implemented by every typed response through its embedded
// contentapi.Response.
type responder interface {
	base() *contentapi.Response
}

type handlerFunc func(s *Server, raw []byte) (responder, []ledger.Event, error)

var handlers = map[string]handlerFunc{
	contentapi.TypePing:            (*Server).handlePing,
	contentapi.TypeKeyRequest:      (*Server).handleKeyRequest,
	contentapi.TypeCreate:          (*Server).handleCreate,
	contentapi.TypeCollect:         (*Server).handleCollect,
	contentapi.TypeDistribute:      (*Server).handleDistribute,
	contentapi.TypeGetAuction:      (*Server).handleGetAuction,
	contentapi.TypeGetPrice:        (*Server).handleGetPrice,
	contentapi.TypeGetToken:        (*Server).handleGetToken,
	contentapi.TypeTokensOf:        (*Server).handleTokensOf,
	contentapi.TypeApproveContents: (*Server).handleApproveContents,
	contentapi.TypeSetURI:          (*Server).handleSetURI,
	contentapi.TypeSetTreasury:     (*Server).handleSetTreasury,
	contentapi.TypeSetTeam:         (*Server).handleSetTeam,
	contentapi.TypeSetIsModerated:  (*Server).handleSetIsModerated,
	contentapi.TypeSetModerators:   (*Server).handleSetModerators,
	contentapi.TypeAddReward:       (*Server).handleAddReward,
	contentapi.TypeTransferOwner:   (*Server).handleTransferOwnership,
	contentapi.TypeApproveQuote:    (*Server).handleApproveQuote,
	contentapi.TypeBalance:         (*Server).handleBalance,
	contentapi.TypeEarned:          (*Server).handleEarned,
	contentapi.TypeClaimRewards:    (*Server).handleClaimRewards,
}

// Handle executes one raw JSON request and returns the response to send.
func (s *Server) Handle(raw []byte) any {
	start := time.Now()
	requestID := uuid.NewString()

	var header contentapi.RequestHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		s.log.Info("failed to decode request", zap.String("request_id", requestID), zap.Error(err))
		return s.errorResponse("error", requestID, start, fmt.Errorf("%w: %v", errInvalidRequest, err))
	}

	responseType := header.Type + "_response"
	if header.Type == contentapi.TypePing {
		responseType = "pong"
	}

	if slices.Contains(contentapi.DisabledTransferTypes, header.Type) {
		return s.errorResponse(responseType, requestID, start, content.ErrTransferDisabled)
	}

	handler, ok := handlers[header.Type]
	if !ok {
		return s.errorResponse("error", requestID, start,
			fmt.Errorf("%w: unknown request type %q", errInvalidRequest, header.Type))
	}

	resp, events, err := handler(s, raw)
	if err != nil {
		s.log.Info("request failed",
			zap.String("type", header.Type),
			zap.String("request_id", requestID),
			zap.String("from", header.From),
			zap.Error(err),
		)
		return s.errorResponse(responseType, requestID, start, err)
	}

	records, err := contentapi.NewEventRecords(events)
	if err != nil {
		s.log.Error("failed to encode events", zap.String("request_id", requestID), zap.Error(err))
	}

	base := resp.base()
	base.Type = responseType
	base.Success = true
	base.RequestID = requestID
	base.Events = records
	if base.Message == "" {
		base.Message = "ok"
	}
	base.ProcessingTime = time.Since(start).Milliseconds()

	s.log.Info("request processed",
		zap.String("type", header.Type),
		zap.String("request_id", requestID),
		zap.Int("events", len(records)),
		zap.Int64("processing_time_ms", base.ProcessingTime),
	)
	return resp
}

func (s *Server) errorResponse(responseType, requestID string, start time.Time, err error) *contentapi.Response {
	code, retryable := errorCode(err)
	return &contentapi.Response{
		Type:           responseType,
		Success:        false,
		Message:        err.Error(),
		ErrorCode:      code,
		Retryable:      retryable,
		RequestID:      requestID,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
}

// errorCode classifies err for the wire.
func errorCode(err error) (string, bool) {
	if kind, ok := content.KindOf(err); ok {
		return content.CodeOf(err), kind.Retryable()
	}
	switch {
	case errors.Is(err, errInvalidRequest):
		return "invalid_request", false
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance", false
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return "insufficient_allowance", false
	case errors.Is(err, rewarder.ErrRewardAmountTooSmall),
		errors.Is(err, rewarder.ErrNotRewardToken),
		errors.Is(err, rewarder.ErrRewardTokenAlreadyAdded),
		errors.Is(err, rewarder.ErrUnknownToken),
		errors.Is(err, rewarder.ErrInsufficientStake):
		return "rewarder_rejected", false
	default:
		return "internal_error", false
	}
}

func decode[T any](raw []byte) (T, error) {
	var req T
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return req, nil
}

func parseAddress(field, s string) (common.Address, error) {
	addr, err := contentapi.ParseAddress(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %v", errInvalidRequest, field, err)
	}
	return addr, nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	amount, err := core.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidRequest, field, err)
	}
	return amount, nil
}

// txResponse is the response of state changing requests without a payload.
type txResponse struct {
	contentapi.Response
}

func (r *txResponse) base() *contentapi.Response { return &r.Response }

type pongResponse struct{ contentapi.PongResponse }

func (r *pongResponse) base() *contentapi.Response { return &r.Response }

type keyResponse struct{ contentapi.KeyResponse }

func (r *keyResponse) base() *contentapi.Response { return &r.Response }

type createResponse struct{ contentapi.CreateResponse }

func (r *createResponse) base() *contentapi.Response { return &r.Response }

type collectResponse struct{ contentapi.CollectResponse }

func (r *collectResponse) base() *contentapi.Response { return &r.Response }

type auctionResponse struct{ contentapi.AuctionResponse }

func (r *auctionResponse) base() *contentapi.Response { return &r.Response }

type priceResponse struct{ contentapi.PriceResponse }

func (r *priceResponse) base() *contentapi.Response { return &r.Response }

type tokenResponse struct{ contentapi.TokenResponse }

func (r *tokenResponse) base() *contentapi.Response { return &r.Response }

type tokensResponse struct{ contentapi.TokensResponse }

func (r *tokensResponse) base() *contentapi.Response { return &r.Response }

type amountResponse struct{ contentapi.AmountResponse }

func (r *amountResponse) base() *contentapi.Response { return &r.Response }

func (s *Server) handlePing(_ []byte) (responder, []ledger.Event, error) {
	resp := &pongResponse{}
	resp.Message = "content server is healthy"
	resp.Timestamp = s.Clock.Now()
	return resp, nil, nil
}

func (s *Server) handleKeyRequest(_ []byte) (responder, []ledger.Event, error) {
	publicKeyPEM, err := s.Keys.PublicKeyPEM()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to export public key: %w", err)
	}
	resp := &keyResponse{}
	resp.KeyAlgorithm = KeyAlgorithm
	resp.PublicKey = publicKeyPEM
	return resp, nil, nil
}

func (s *Server) handleCreate(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.CreateRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	// A missing recipient is passed on as the zero address so Create rejects it.
	to := common.Address{}
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			return nil, nil, err
		}
	}

	resp := &createResponse{}
	events, err := s.Executor.Execute(func() error {
		id, err := s.Content.Create(from, to, req.URI)
		resp.TokenID = id
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	resp.Message = fmt.Sprintf("created token %d", resp.TokenID)
	return resp, events, nil
}

func (s *Server) handleCollect(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.CollectRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	to := common.Address{}
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			return nil, nil, err
		}
	}
	maxPrice, err := parseAmount("max_price", req.MaxPrice)
	if err != nil {
		return nil, nil, err
	}

	resp := &collectResponse{}
	resp.TokenID = req.TokenID
	events, err := s.Executor.Execute(func() error {
		// Read before collecting; Collect itself reports unknown tokens in order.
		before, _ := s.Content.GetAuction(req.TokenID)
		prevOwner, _ := s.Content.OwnerOf(req.TokenID)

		price, err := s.Content.Collect(from, content.CollectParams{
			To:       to,
			TokenID:  req.TokenID,
			EpochID:  req.EpochID,
			Deadline: req.Deadline,
			MaxPrice: maxPrice,
		})
		if err != nil {
			return err
		}
		after, err := s.Content.GetAuction(req.TokenID)
		if err != nil {
			return err
		}

		receipt := &contentapi.CollectReceipt{
			ReceiptID:    uuid.NewString(),
			Content:      s.Content.Address().Hex(),
			TokenID:      req.TokenID,
			EpochID:      before.EpochID,
			Buyer:        from.Hex(),
			To:           to.Hex(),
			PrevOwner:    prevOwner.Hex(),
			Price:        price.Dec(),
			Timestamp:    after.StartTime,
			Auction:      contentapi.NewAuction(before),
			NextAuction:  contentapi.NewAuction(after),
			MinInitPrice: s.Content.MinInitPrice().Dec(),
			ProtocolFee:  s.Content.ProtocolFeeAddress() != (common.Address{}),
			Split:        contentapi.NewFeeSplit(core.SplitFees(price, s.Content.ProtocolFeeAddress() != (common.Address{}))),
		}
		// An unsigned collection is not committed.
		coseBytes, err := s.Keys.SignReceipt(receipt)
		if err != nil {
			return fmt.Errorf("failed to sign receipt: %w", err)
		}

		resp.Price = price.Dec()
		resp.ReceiptCOSEBase64 = coseBytes.EncodeBase64()
		resp.Message = fmt.Sprintf("collected token %d for %s", req.TokenID, core.FormatUnits(price))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, events, nil
}

func (s *Server) handleDistribute(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.RequestHeader](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	return s.transact(func() error { return s.Content.Distribute(from) })
}

// transact runs fn as one transaction with an empty success payload.
func (s *Server) transact(fn func() error) (responder, []ledger.Event, error) {
	events, err := s.Executor.Execute(fn)
	if err != nil {
		return nil, nil, err
	}
	return &txResponse{}, events, nil
}

func (s *Server) handleGetAuction(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.TokenRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	resp := &auctionResponse{}
	resp.TokenID = req.TokenID
	err = s.Executor.View(func() error {
		a, err := s.Content.GetAuction(req.TokenID)
		resp.Auction = contentapi.NewAuction(a)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, nil, nil
}

func (s *Server) handleGetPrice(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.TokenRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	resp := &priceResponse{}
	resp.TokenID = req.TokenID
	err = s.Executor.View(func() error {
		price, err := s.Content.GetPrice(req.TokenID)
		if err != nil {
			return err
		}
		resp.Price = price.Dec()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, nil, nil
}

func (s *Server) handleGetToken(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.TokenRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	resp := &tokenResponse{}
	resp.TokenID = req.TokenID
	err = s.Executor.View(func() error {
		a, err := s.Content.GetAuction(req.TokenID)
		if err != nil {
			return err
		}
		owner, _ := s.Content.OwnerOf(req.TokenID)
		creator, _ := s.Content.CreatorOf(req.TokenID)
		uri, _ := s.Content.TokenURI(req.TokenID)
		approved, _ := s.Content.IsApproved(req.TokenID)
		stake, _ := s.Content.Stake(req.TokenID)
		price, _ := s.Content.GetPrice(req.TokenID)

		resp.Owner = owner.Hex()
		resp.Creator = creator.Hex()
		resp.URI = uri
		resp.Approved = approved
		resp.Stake = stake.Dec()
		resp.Price = price.Dec()
		resp.Auction = contentapi.NewAuction(a)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, nil, nil
}

func (s *Server) handleTokensOf(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.AddressRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	owner, err := parseAddress("address", req.Address)
	if err != nil {
		return nil, nil, err
	}
	resp := &tokensResponse{}
	resp.Owner = owner.Hex()
	err = s.Executor.View(func() error {
		resp.TokenIDs = s.Content.TokensOf(owner)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, nil, nil
}

func (s *Server) handleApproveContents(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.ApproveContentsRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	return s.transact(func() error { return s.Content.ApproveContents(from, req.TokenIDs) })
}

func (s *Server) handleSetURI(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.SetURIRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	return s.transact(func() error { return s.Content.SetURI(from, req.URI) })
}

// addressCall decodes an AddressRequest and runs call(from, address) as one
// transaction. A missing address is passed on as the zero address so the
// content layer rejects it.
func (s *Server) addressCall(raw []byte, call func(from, addr common.Address) error) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.AddressRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	addr := common.Address{}
	if req.Address != "" {
		if addr, err = parseAddress("address", req.Address); err != nil {
			return nil, nil, err
		}
	}
	return s.transact(func() error { return call(from, addr) })
}

func (s *Server) handleSetTreasury(raw []byte) (responder, []ledger.Event, error) {
	return s.addressCall(raw, s.Content.SetTreasury)
}

func (s *Server) handleSetTeam(raw []byte) (responder, []ledger.Event, error) {
	return s.addressCall(raw, s.Content.SetTeam)
}

func (s *Server) handleAddReward(raw []byte) (responder, []ledger.Event, error) {
	return s.addressCall(raw, s.Content.AddReward)
}

func (s *Server) handleTransferOwnership(raw []byte) (responder, []ledger.Event, error) {
	return s.addressCall(raw, s.Content.TransferOwnership)
}

func (s *Server) handleSetIsModerated(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.SetIsModeratedRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	return s.transact(func() error { return s.Content.SetIsModerated(from, req.IsModerated) })
}

func (s *Server) handleSetModerators(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.SetModeratorsRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	accounts := make([]common.Address, 0, len(req.Accounts))
	for i, account := range req.Accounts {
		addr, err := parseAddress(fmt.Sprintf("accounts[%d]", i), account)
		if err != nil {
			return nil, nil, err
		}
		accounts = append(accounts, addr)
	}
	return s.transact(func() error { return s.Content.SetModerators(from, accounts, req.IsModerator) })
}

func (s *Server) handleApproveQuote(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.ApproveQuoteRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, nil, err
	}
	return s.transact(func() error { return s.Quote.Approve(from, s.Content.Address(), amount) })
}

func (s *Server) asset(name string) (*ledger.Token, error) {
	switch name {
	case contentapi.AssetQuote, "":
		return s.Quote, nil
	case contentapi.AssetUnit:
		return s.Unit, nil
	default:
		return nil, fmt.Errorf("%w: unknown asset %q", errInvalidRequest, name)
	}
}

func (s *Server) assetQuery(raw []byte, query func(account common.Address, token *ledger.Token) *uint256.Int) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.AssetRequest](raw)
	if err != nil {
		return nil, nil, err
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		return nil, nil, err
	}
	token, err := s.asset(req.Asset)
	if err != nil {
		return nil, nil, err
	}

	resp := &amountResponse{}
	resp.Account = account.Hex()
	resp.Asset = token.Symbol()
	err = s.Executor.View(func() error {
		resp.Amount = query(account, token).Dec()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, nil, nil
}

func (s *Server) handleBalance(raw []byte) (responder, []ledger.Event, error) {
	return s.assetQuery(raw, func(account common.Address, token *ledger.Token) *uint256.Int {
		return token.BalanceOf(account)
	})
}

func (s *Server) handleEarned(raw []byte) (responder, []ledger.Event, error) {
	return s.assetQuery(raw, func(account common.Address, token *ledger.Token) *uint256.Int {
		return s.Rewarder.Earned(account, token.Address())
	})
}

func (s *Server) handleClaimRewards(raw []byte) (responder, []ledger.Event, error) {
	req, err := decode[contentapi.RequestHeader](raw)
	if err != nil {
		return nil, nil, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	return s.transact(func() error { return s.Rewarder.GetReward(from) })
}
