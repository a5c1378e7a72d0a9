// Package api exposes the staking controller over HTTP and streams its
// event feed over websocket.
package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/kodiak-network/kodiak/pool"
	"github.com/kodiak-network/kodiak/staking"
)

// Server routes HTTP requests to a staking controller. persist, when set,
// runs after every mutating operation so the daemon can write the state
// surface through to disk.
type Server struct {
	ctrl     *staking.Controller
	persist  func() error
	router   *httprouter.Router
	upgrader websocket.Upgrader
}

func NewServer(ctrl *staking.Controller, persist func() error) *Server {
	s := &Server{
		ctrl:    ctrl,
		persist: persist,
		router:  httprouter.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router.POST("/v1/stake/nfts", s.stakeNFTs)
	s.router.POST("/v1/stake/erc20", s.stakeERC20)
	s.router.POST("/v1/claim", s.claim)
	s.router.POST("/v1/update", s.update)
	s.router.POST("/v1/heal", s.heal)
	s.router.GET("/v1/rewards/:account", s.rewards)
	s.router.GET("/v1/state", s.state)
	s.router.GET("/v1/events", s.events)
	return s
}

// Handler returns the CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return cors.Default().Handler(s.router)
}

type stakeNFTsRequest struct {
	Account  common.Address `json:"account"`
	TokenIDs []uint64       `json:"tokenIds"`
}

type stakeERC20Request struct {
	Account common.Address `json:"account"`
	Amount  string         `json:"amount"` // decimal base units
}

type accountRequest struct {
	Account common.Address `json:"account"`
}

func (s *Server) stakeNFTs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req stakeNFTsRequest
	if !decode(w, r, &req) {
		return
	}
	applied, err := s.ctrl.StakeLegacyNFTs(req.Account, req.TokenIDs)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.committed(w, map[string]any{"applied": applied})
}

func (s *Server) stakeERC20(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req stakeERC20Request
	if !decode(w, r, &req) {
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		httpError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	units, applied, err := s.ctrl.StakeWithERC20(req.Account, amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.committed(w, map[string]any{"applied": applied, "units": units})
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := s.ctrl.ClaimRewards(req.Account)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.committed(w, map[string]any{"amount": amount.String()})
}

func (s *Server) update(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	extinct, err := s.ctrl.UpdateEcosystem()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.committed(w, map[string]any{"extinct": extinct})
}

func (s *Server) heal(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if err := s.ctrl.Heal(); err != nil {
		s.fail(w, err)
		return
	}
	s.committed(w, map[string]any{"paused": false})
}

func (s *Server) rewards(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	raw := ps.ByName("account")
	if !common.IsHexAddress(raw) {
		httpError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	q, err := s.ctrl.CalculateRewards(common.HexToAddress(raw))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"amount":   q.Amount.String(),
		"cappedAt": q.CappedAt,
	})
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	snap, err := s.ctrl.Snapshot()
	if err != nil {
		s.fail(w, err)
		return
	}
	extinctions := snap.Extinctions
	if extinctions == nil {
		extinctions = []uint64{}
	}
	writeJSON(w, map[string]any{
		"supply":           snap.Supply.String(),
		"totalUnits":       snap.TotalUnits,
		"totalDistributed": snap.TotalDistributed.String(),
		"lastUpdate":       snap.LastUpdate,
		"paused":           snap.Paused,
		"start":            snap.Start,
		"extinctions":      extinctions,
	})
}

// eventWriteTimeout bounds each websocket write. A client that stops
// reading gets dropped instead of backing the feed up behind it.
const eventWriteTimeout = 10 * time.Second

// events upgrades to websocket and forwards the controller's event feed
// until the client goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan staking.Event, 256)
	sub := s.ctrl.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(envelope(ev)); err != nil {
				log.Debug("api: dropping event subscriber", "err", err)
				return
			}
		case err := <-sub.Err():
			if err != nil {
				log.Warn("api: event subscription failed", "err", err)
			}
			return
		}
	}
}

func envelope(ev staking.Event) map[string]any {
	switch ev := ev.(type) {
	case staking.NFTStakedEvent:
		return map[string]any{"type": "nft_staked", "account": ev.Account, "tokenId": ev.TokenID}
	case staking.StakedEvent:
		return map[string]any{"type": "staked", "account": ev.Account, "units": ev.Units}
	case staking.RewardClaimedEvent:
		return map[string]any{"type": "reward_claimed", "account": ev.Account, "amount": ev.Amount.String()}
	case staking.EcosystemUpdatedEvent:
		return map[string]any{"type": "ecosystem_updated", "supply": ev.Supply.String(), "epoch": ev.Epoch}
	case staking.ExtinctionEvent:
		return map[string]any{"type": "extinction", "time": ev.Time}
	case staking.PausedEvent:
		return map[string]any{"type": "paused"}
	case staking.UnpausedEvent:
		return map[string]any{"type": "unpaused"}
	default:
		return map[string]any{"type": "unknown"}
	}
}

// committed persists the state surface and then responds. A persist failure
// is a server error: the operation happened but its durability is suspect.
func (s *Server) committed(w http.ResponseWriter, body map[string]any) {
	if s.persist != nil {
		if err := s.persist(); err != nil {
			log.Error("api: state persistence failed", "err", err)
			httpError(w, http.StatusInternalServerError, "state persistence failed")
			return
		}
	}
	writeJSON(w, body)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staking.ErrBusy):
		httpError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, staking.ErrPaused),
		errors.Is(err, staking.ErrNoTokens),
		errors.Is(err, staking.ErrDuplicateToken),
		errors.Is(err, staking.ErrBelowUnitCost),
		errors.Is(err, staking.ErrStakeTooLarge),
		errors.Is(err, pool.ErrNotPaused),
		errors.Is(err, pool.ErrSupplyTooLow):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
