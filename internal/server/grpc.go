package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"MarginSettle/internal/engine"
	"MarginSettle/internal/fees"
	"MarginSettle/internal/observability"
	"MarginSettle/internal/oracle"
	"MarginSettle/internal/pairs"
	"MarginSettle/internal/position"
	"MarginSettle/internal/vault"

	adminv1 "MarginSettle/gen/go/marginsettle/admin/v1"
	tradev1 "MarginSettle/gen/go/marginsettle/trade/v1"
)

// GRPCServer wraps the gRPC server and the gRPC-Gateway HTTP mux.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
}

// ServerDeps holds the dependencies the gRPC services operate on.
type ServerDeps struct {
	Engine        *engine.Engine
	Vault         *vault.SettlementVault
	HealthChecker *observability.HealthChecker
}

// NewGRPCServer creates a gRPC server with trade and admin services
// registered, plus health and reflection.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	grpcServer := grpc.NewServer()

	tradev1.RegisterTradeServiceServer(grpcServer, &tradeServiceImpl{eng: deps.Engine})
	adminv1.RegisterAdminServiceServer(grpcServer, &adminServiceImpl{
		eng:   deps.Engine,
		vault: deps.Vault,
	})

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTPGateway starts the gRPC-Gateway HTTP reverse proxy (blocking).
// HTTP/JSON is served for tooling, dashboards, and curl.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	mux := runtime.NewServeMux()

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}

	if err := tradev1.RegisterTradeServiceHandlerFromEndpoint(ctx, mux, s.grpcAddr, opts); err != nil {
		return fmt.Errorf("register trade gateway: %w", err)
	}
	if err := adminv1.RegisterAdminServiceHandlerFromEndpoint(ctx, mux, s.grpcAddr, opts); err != nil {
		return fmt.Errorf("register admin gateway: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok"}`)
		})
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP gateway shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP gateway listening on %s (proxying to gRPC %s)", s.httpAddr, s.grpcAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// TradeService gRPC implementation
// ============================================================================

type tradeServiceImpl struct {
	tradev1.UnimplementedTradeServiceServer
	eng *engine.Engine
}

func (s *tradeServiceImpl) OpenPosition(ctx context.Context, req *tradev1.OpenPositionRequest) (*tradev1.OpenPositionResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	params, err := parseTradeParams(req.Params)
	if err != nil {
		return nil, err
	}
	att, sig, err := parseAttestation(req.Attestation)
	if err != nil {
		return nil, err
	}

	p, err := s.eng.OpenPosition(caller, params, att, sig)
	if err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.OpenPositionResponse{Position: protoPosition(p)}, nil
}

func (s *tradeServiceImpl) CreateLimitOrder(ctx context.Context, req *tradev1.CreateLimitOrderRequest) (*tradev1.CreateLimitOrderResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	params, err := parseTradeParams(req.Params)
	if err != nil {
		return nil, err
	}

	o, err := s.eng.CreateLimitOrder(caller, params)
	if err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.CreateLimitOrderResponse{Order: protoOrder(o)}, nil
}

func (s *tradeServiceImpl) ExecuteLimitOrder(ctx context.Context, req *tradev1.ExecuteLimitOrderRequest) (*tradev1.ExecuteLimitOrderResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	att, sig, err := parseAttestation(req.Attestation)
	if err != nil {
		return nil, err
	}

	p, err := s.eng.ExecuteLimitOrder(caller, req.Id, att, sig, req.ResourcePrice)
	if err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.ExecuteLimitOrderResponse{Position: protoPosition(p)}, nil
}

func (s *tradeServiceImpl) CancelLimitOrder(ctx context.Context, req *tradev1.CancelLimitOrderRequest) (*tradev1.CancelLimitOrderResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	vaultAddr, err := parseAddress(req.Vault)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid vault: %v", err)
	}

	if err := s.eng.CancelLimitOrder(caller, req.Id, vaultAddr); err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.CancelLimitOrderResponse{}, nil
}

func (s *tradeServiceImpl) ClosePosition(ctx context.Context, req *tradev1.ClosePositionRequest) (*tradev1.ClosePositionResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	vaultAddr, err := parseAddress(req.Vault)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid vault: %v", err)
	}
	att, sig, err := parseAttestation(req.Attestation)
	if err != nil {
		return nil, err
	}

	payout, err := s.eng.ClosePosition(caller, req.Id, req.Percent, vaultAddr, att, sig)
	if err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.ClosePositionResponse{Payout: payout}, nil
}

func (s *tradeServiceImpl) LimitClose(ctx context.Context, req *tradev1.LimitCloseRequest) (*tradev1.LimitCloseResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	vaultAddr, err := parseAddress(req.Vault)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid vault: %v", err)
	}
	att, sig, err := parseAttestation(req.Attestation)
	if err != nil {
		return nil, err
	}

	payout, err := s.eng.LimitClose(caller, req.Id, req.TakeProfit, vaultAddr, att, sig, req.ResourcePrice)
	if err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.LimitCloseResponse{Payout: payout}, nil
}

func (s *tradeServiceImpl) Liquidate(ctx context.Context, req *tradev1.LiquidateRequest) (*tradev1.LiquidateResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	att, sig, err := parseAttestation(req.Attestation)
	if err != nil {
		return nil, err
	}

	if err := s.eng.Liquidate(caller, req.Id, att, sig, req.ResourcePrice); err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.LiquidateResponse{}, nil
}

func (s *tradeServiceImpl) AddMargin(ctx context.Context, req *tradev1.AdjustMarginRequest) (*tradev1.AdjustMarginResponse, error) {
	return s.adjust(req, s.eng.AddMargin)
}

func (s *tradeServiceImpl) RemoveMargin(ctx context.Context, req *tradev1.AdjustMarginRequest) (*tradev1.AdjustMarginResponse, error) {
	return s.adjust(req, s.eng.RemoveMargin)
}

func (s *tradeServiceImpl) AddToPosition(ctx context.Context, req *tradev1.AdjustMarginRequest) (*tradev1.AdjustMarginResponse, error) {
	return s.adjust(req, s.eng.AddToPosition)
}

type adjustFn func(caller common.Address, id, amount int64, vaultAddr common.Address, att oracle.PriceData, sig []byte) error

func (s *tradeServiceImpl) adjust(req *tradev1.AdjustMarginRequest, fn adjustFn) (*tradev1.AdjustMarginResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}
	vaultAddr, err := parseAddress(req.Vault)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid vault: %v", err)
	}
	att, sig, err := parseAttestation(req.Attestation)
	if err != nil {
		return nil, err
	}

	if err := fn(caller, req.Id, req.Amount, vaultAddr, att, sig); err != nil {
		return nil, engineStatus(err)
	}

	p, ok := s.eng.Ledger().Position(req.Id)
	if !ok {
		return &tradev1.AdjustMarginResponse{}, nil
	}
	return &tradev1.AdjustMarginResponse{Position: protoPosition(p)}, nil
}

func (s *tradeServiceImpl) UpdateTpSl(ctx context.Context, req *tradev1.UpdateTpSlRequest) (*tradev1.UpdateTpSlResponse, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid caller: %v", err)
	}

	// A zero value clears the bound and needs no attestation.
	var att oracle.PriceData
	var sig []byte
	if req.Value != 0 {
		att, sig, err = parseAttestation(req.Attestation)
		if err != nil {
			return nil, err
		}
	}

	if err := s.eng.UpdateTpSl(caller, req.Id, req.TakeProfit, req.Value, att, sig); err != nil {
		return nil, engineStatus(err)
	}
	return &tradev1.UpdateTpSlResponse{}, nil
}

func (s *tradeServiceImpl) GetPosition(ctx context.Context, req *tradev1.GetPositionRequest) (*tradev1.GetPositionResponse, error) {
	if p, ok := s.eng.Ledger().Position(req.Id); ok {
		return &tradev1.GetPositionResponse{
			Entry: &tradev1.GetPositionResponse_Position{Position: protoPosition(p)},
		}, nil
	}
	if o, ok := s.eng.Ledger().LimitOrder(req.Id); ok {
		return &tradev1.GetPositionResponse{
			Entry: &tradev1.GetPositionResponse_Order{Order: protoOrder(o)},
		}, nil
	}
	return nil, status.Errorf(codes.NotFound, "no position or order with id %d", req.Id)
}

func (s *tradeServiceImpl) ApproveProxy(ctx context.Context, req *tradev1.ApproveProxyRequest) (*tradev1.ApproveProxyResponse, error) {
	owner, err := parseAddress(req.Owner)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid owner: %v", err)
	}
	delegate, err := parseAddress(req.Delegate)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid delegate: %v", err)
	}

	s.eng.ApproveProxy(owner, delegate, req.Expiry)
	return &tradev1.ApproveProxyResponse{}, nil
}

func (s *tradeServiceImpl) RevokeProxy(ctx context.Context, req *tradev1.RevokeProxyRequest) (*tradev1.RevokeProxyResponse, error) {
	owner, err := parseAddress(req.Owner)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid owner: %v", err)
	}

	s.eng.RevokeProxy(owner)
	return &tradev1.RevokeProxyResponse{}, nil
}

func (s *tradeServiceImpl) CreateReferralCode(ctx context.Context, req *tradev1.CreateReferralCodeRequest) (*tradev1.CreateReferralCodeResponse, error) {
	owner, err := parseAddress(req.Owner)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid owner: %v", err)
	}
	code, err := parseRefCode(req.Code)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid code: %v", err)
	}

	if err := s.eng.Fees().Referrals().CreateCode(owner, code); err != nil {
		return nil, status.Errorf(codes.AlreadyExists, "create code: %v", err)
	}
	return &tradev1.CreateReferralCodeResponse{}, nil
}

// ============================================================================
// AdminService gRPC implementation
// ============================================================================

type adminServiceImpl struct {
	adminv1.UnimplementedAdminServiceServer
	eng   *engine.Engine
	vault *vault.SettlementVault
}

func (s *adminServiceImpl) SetEngineParams(ctx context.Context, req *adminv1.SetEngineParamsRequest) (*adminv1.SetEngineParamsResponse, error) {
	if req.Paused != nil {
		s.eng.SetPaused(*req.Paused)
	}
	if req.MaxWinPercent != nil {
		s.eng.SetMaxWinPercent(*req.MaxWinPercent)
	}
	if req.TimeDelay != nil {
		s.eng.SetTimeDelay(*req.TimeDelay)
	}
	if req.LimitPriceRange != nil {
		s.eng.SetLimitPriceRange(*req.LimitPriceRange)
	}
	if req.MaxResourcePrice != nil {
		s.eng.SetMaxResourcePrice(*req.MaxResourcePrice)
	}
	if req.Treasury != nil {
		addr, err := parseAddress(*req.Treasury)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid treasury: %v", err)
		}
		s.eng.SetTreasury(addr)
	}
	return &adminv1.SetEngineParamsResponse{}, nil
}

func (s *adminServiceImpl) UpsertPair(ctx context.Context, req *adminv1.UpsertPairRequest) (*adminv1.UpsertPairResponse, error) {
	if req.Id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "pair id must be positive")
	}
	if req.MinLeverage <= 0 || req.MaxLeverage < req.MinLeverage {
		return nil, status.Error(codes.InvalidArgument, "bad leverage bounds")
	}

	threshold := req.LiqThreshold
	if threshold == 0 {
		threshold = pairs.DefaultLiqThreshold
	}

	s.eng.Pairs().AddPair(pairs.Pair{
		ID:              req.Id,
		Name:            req.Name,
		Tradable:        req.Tradable,
		MinLeverage:     req.MinLeverage,
		MaxLeverage:     req.MaxLeverage,
		BaseFundingRate: req.BaseFundingRate,
		LiqThreshold:    threshold,
	})
	return &adminv1.UpsertPairResponse{}, nil
}

func (s *adminServiceImpl) SetMarginAsset(ctx context.Context, req *adminv1.SetMarginAssetRequest) (*adminv1.SetMarginAssetResponse, error) {
	asset, err := parseAddress(req.Asset)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid asset: %v", err)
	}

	s.eng.Pairs().SetAllowedMargin(asset, req.Allowed)
	if req.MinPositionSize > 0 {
		s.eng.Pairs().SetMinPositionSize(asset, req.MinPositionSize)
	}
	return &adminv1.SetMarginAssetResponse{}, nil
}

func (s *adminServiceImpl) SetFeeSchedule(ctx context.Context, req *adminv1.SetFeeScheduleRequest) (*adminv1.SetFeeScheduleResponse, error) {
	err := s.eng.Fees().SetSchedule(req.IsOpen, fees.Schedule{
		Protocol: req.Protocol,
		Burn:     req.Burn,
		Referral: req.Referral,
		Bot:      req.Bot,
		Discount: req.Discount,
	})
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "set schedule: %v", err)
	}
	return &adminv1.SetFeeScheduleResponse{}, nil
}

func (s *adminServiceImpl) SetVaultToken(ctx context.Context, req *adminv1.SetVaultTokenRequest) (*adminv1.SetVaultTokenResponse, error) {
	token, err := parseAddress(req.Token)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid token: %v", err)
	}

	if req.Listed {
		s.vault.ListToken(token)
	} else {
		s.vault.DelistToken(token)
	}
	return &adminv1.SetVaultTokenResponse{}, nil
}

func (s *adminServiceImpl) SetOracleNode(ctx context.Context, req *adminv1.SetOracleNodeRequest) (*adminv1.SetOracleNodeResponse, error) {
	node, err := parseAddress(req.Node)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid node: %v", err)
	}

	s.eng.Verifier().SetNode(node, req.Enabled)
	return &adminv1.SetOracleNodeResponse{}, nil
}

func (s *adminServiceImpl) GetOpenInterest(ctx context.Context, req *adminv1.GetOpenInterestRequest) (*adminv1.GetOpenInterestResponse, error) {
	asset, err := parseAddress(req.Asset)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid asset: %v", err)
	}

	long, short := s.eng.Pairs().OpenInterest(req.PairId, asset)
	return &adminv1.GetOpenInterestResponse{
		LongOi:  long,
		ShortOi: short,
	}, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}

func parseRefCode(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return common.Hash{}, err
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("code must be %d bytes, got %d", common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

func parseTradeParams(p *tradev1.TradeParams) (engine.TradeRequest, error) {
	if p == nil {
		return engine.TradeRequest{}, status.Error(codes.InvalidArgument, "params are required")
	}

	trader, err := parseAddress(p.Trader)
	if err != nil {
		return engine.TradeRequest{}, status.Errorf(codes.InvalidArgument, "invalid trader: %v", err)
	}
	marginAsset, err := parseAddress(p.MarginAsset)
	if err != nil {
		return engine.TradeRequest{}, status.Errorf(codes.InvalidArgument, "invalid margin_asset: %v", err)
	}
	vaultAddr, err := parseAddress(p.Vault)
	if err != nil {
		return engine.TradeRequest{}, status.Errorf(codes.InvalidArgument, "invalid vault: %v", err)
	}
	code, err := parseRefCode(p.RefCode)
	if err != nil {
		return engine.TradeRequest{}, status.Errorf(codes.InvalidArgument, "invalid ref_code: %v", err)
	}

	return engine.TradeRequest{
		Trader:      trader,
		PairID:      p.PairId,
		Long:        p.Long,
		Margin:      p.Margin,
		Leverage:    p.Leverage,
		TakeProfit:  p.TakeProfit,
		StopLoss:    p.StopLoss,
		Kind:        position.OrderKind(p.Kind),
		Trigger:     p.Trigger,
		MarginAsset: marginAsset,
		Vault:       vaultAddr,
		RefCode:     code,
	}, nil
}

func parseAttestation(a *tradev1.PriceAttestation) (oracle.PriceData, []byte, error) {
	if a == nil {
		return oracle.PriceData{}, nil, status.Error(codes.InvalidArgument, "attestation is required")
	}

	provider, err := parseAddress(a.Provider)
	if err != nil {
		return oracle.PriceData{}, nil, status.Errorf(codes.InvalidArgument, "invalid provider: %v", err)
	}

	return oracle.PriceData{
		Provider:  provider,
		IsClosed:  a.IsClosed,
		PairID:    a.PairId,
		Price:     a.Price,
		Spread:    a.Spread,
		Timestamp: a.Timestamp,
	}, a.Signature, nil
}

func protoPosition(p *position.Position) *tradev1.Position {
	return &tradev1.Position{
		Id:          p.ID,
		Owner:       p.Owner.Hex(),
		PairId:      p.PairID,
		Long:        p.Long,
		Margin:      p.Margin,
		Leverage:    p.Leverage,
		OpenPrice:   p.OpenPrice,
		TakeProfit:  p.TakeProfit,
		StopLoss:    p.StopLoss,
		AccInterest: p.AccInterest,
		Asset:       p.Asset.Hex(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func protoOrder(o *position.LimitOrder) *tradev1.LimitOrder {
	return &tradev1.LimitOrder{
		Id:         o.ID,
		Owner:      o.Owner.Hex(),
		PairId:     o.PairID,
		Long:       o.Long,
		Margin:     o.Margin,
		Leverage:   o.Leverage,
		Kind:       tradev1.OrderKind(o.Kind),
		Trigger:    o.Trigger,
		TakeProfit: o.TakeProfit,
		StopLoss:   o.StopLoss,
		Asset:      o.Asset.Hex(),
		CreatedAt:  o.CreatedAt,
	}
}

// engineStatus maps engine sentinel errors onto gRPC codes.
func engineStatus(err error) error {
	switch {
	case errors.Is(err, position.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrNotOwner),
		errors.Is(err, engine.ErrNotProxy):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, engine.ErrPaused):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, engine.ErrWaitDelay):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, oracle.ErrBadSignature),
		errors.Is(err, oracle.ErrUnauthorizedSigner),
		errors.Is(err, oracle.ErrExpiredSignature),
		errors.Is(err, oracle.ErrFutureSignature):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, engine.ErrLimitNotMet),
		errors.Is(err, engine.ErrNotLiquidatable),
		errors.Is(err, engine.ErrLiquidatable),
		errors.Is(err, engine.ErrCloseToMaxPnL),
		errors.Is(err, vault.ErrInsufficient):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, engine.ErrBadDeposit),
		errors.Is(err, engine.ErrBadWithdraw):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}
