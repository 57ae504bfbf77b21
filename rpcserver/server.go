// Package rpcserver implements the historical JSON-RPC query service:
// account queries answered from a snapshot index, transaction queries
// forwarded to an upstream RPC endpoint.
package rpcserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ledgerlabs/snapstream/accountindex"
	"github.com/ledgerlabs/snapstream/config"
	"github.com/ledgerlabs/snapstream/ledger"
	"github.com/ledgerlabs/snapstream/snapshotdir"
)

// maxRequestSize bounds a request body. Account queries are tiny;
// forwarded transaction queries stay well under this too.
const maxRequestSize = 1 << 20

// Health receives the outcome of forwarded upstream requests, so
// persistent upstream failure shows up on the health endpoint.
type Health interface {
	AddSuccess()
	AddFailure()
}

// Server answers JSON-RPC queries for one snapshot.
type Server struct {
	log    logrus.FieldLogger
	cfg    config.RPC
	snap   *snapshotdir.Snapshot
	index  *accountindex.Index
	client *http.Client
	health Health
}

// New returns a Server answering from the given snapshot and index.
// health may be nil.
func New(log logrus.FieldLogger, cfg config.RPC, snap *snapshotdir.Snapshot, index *accountindex.Index, health Health) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &Server{
		log:    log.WithField("component", "rpc"),
		cfg:    cfg,
		snap:   snap,
		index:  index,
		client: &http.Client{Timeout: timeout},
		health: health,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("address", s.cfg.Address).Info("RPC server enabled")

	select {
	case err := <-errCh:
		return errors.Wrap(err, "rpc server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "rpc server shutdown")
		}
		return nil
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		writeResponse(s.log, w, errResponse(nil, codeParseError, "failed to read request body"))
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(s.log, w, errResponse(nil, codeParseError, "failed to parse request"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeResponse(s.log, w, errResponse(req.ID, codeInvalidRequest, "not a JSON-RPC 2.0 request"))
		return
	}

	metricRequests.WithLabelValues(req.Method).Inc()
	switch req.Method {
	case "getAccountInfo":
		writeResponse(s.log, w, s.getAccountInfo(r.Context(), req))
	case "getTransaction":
		s.forwardTransaction(r.Context(), w, req, body)
	case "getHealth":
		writeResponse(s.log, w, okResponse(req.ID, "ok"))
	default:
		metricErrors.WithLabelValues(req.Method).Inc()
		writeResponse(s.log, w, errResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method))
	}
}

// getAccountInfo answers an account query from the index. All
// parameter validation happens before any index lookup, so a malformed
// query for a missing account still reports the malformation.
func (s *Server) getAccountInfo(ctx context.Context, req rpcRequest) rpcResponse {
	var params []json.RawMessage
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) < 1 || len(params) > 2 {
		return s.invalidParams(req, "expected [pubkey, config?]")
	}

	var pubkeyStr string
	if err := json.Unmarshal(params[0], &pubkeyStr); err != nil {
		return s.invalidParams(req, "pubkey must be a string")
	}
	pk, err := ledger.ParsePubkey(pubkeyStr)
	if err != nil {
		return s.invalidParams(req, "invalid pubkey")
	}

	cfg := accountInfoConfig{}
	if len(params) == 2 {
		if err := json.Unmarshal(params[1], &cfg); err != nil {
			return s.invalidParams(req, "invalid config object")
		}
	}
	// The config object is optional; an omitted encoding selects the
	// only one we serve.
	if cfg.Encoding == "" {
		cfg.Encoding = "base64"
	}
	if cfg.Encoding != "base64" {
		return s.invalidParams(req, "unsupported encoding: only base64 is supported")
	}
	if len(cfg.DataSlice) > 0 {
		return s.invalidParams(req, "dataSlice is not supported")
	}
	if cfg.MinContextSlot != nil && *cfg.MinContextSlot > s.snap.Slot() {
		metricErrors.WithLabelValues(req.Method).Inc()
		return errResponse(req.ID, codeSlotNotReached, "minimum context slot has not been reached")
	}

	result := accountInfoResult{Context: rpcContext{Slot: s.snap.Slot()}}
	loc, ok := s.index.Get(pk)
	if !ok {
		return okResponse(req.ID, result)
	}

	acct, err := s.readAccount(ctx, pk, loc)
	if err != nil {
		s.log.WithError(err).WithField("pubkey", pubkeyStr).Error("Failed to read account from segment")
		return errResponse(req.ID, codeInternalError, "failed to read account")
	}
	if acct != nil {
		result.Value = &accountValue{
			Data:       [2]string{base64.StdEncoding.EncodeToString(acct.Data), "base64"},
			Executable: acct.Executable,
			Lamports:   acct.Lamports,
			Owner:      acct.Owner.String(),
			RentEpoch:  acct.RentEpoch,
			Space:      uint64(len(acct.Data)),
		}
	}
	return okResponse(req.ID, result)
}

// readAccount re-reads the account's record from the segment the index
// points at. A segment can hold several records for one pubkey; the
// highest write version is the live one.
func (s *Server) readAccount(ctx context.Context, pk ledger.Pubkey, loc accountindex.Location) (*ledger.Account, error) {
	av, err := s.snap.OpenSegmentAt(ctx, loc.Slot, loc.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = av.Close()
	}()

	var best *ledger.Account
	var bestVersion uint64
	var offset uint64
	for {
		sa, next, ok := av.GetAccount(offset)
		if !ok {
			break
		}
		if sa.Meta.Pubkey == pk && (best == nil || sa.Meta.WriteVersion >= bestVersion) {
			acct := sa.CloneAccount()
			best = &acct
			bestVersion = sa.Meta.WriteVersion
		}
		offset = next
	}
	return best, nil
}

func (s *Server) invalidParams(req rpcRequest, msg string) rpcResponse {
	metricErrors.WithLabelValues(req.Method).Inc()
	return errResponse(req.ID, codeInvalidParams, msg)
}

// forwardTransaction relays the request verbatim to the configured
// upstream endpoint and its response verbatim back to the client.
func (s *Server) forwardTransaction(ctx context.Context, w http.ResponseWriter, req rpcRequest, body []byte) {
	if s.cfg.TransactionForwardURL == "" {
		metricErrors.WithLabelValues(req.Method).Inc()
		writeResponse(s.log, w, errResponse(req.ID, codeNotConfigured, "transaction forwarding is not configured"))
		return
	}

	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TransactionForwardURL, bytes.NewReader(body))
	if err != nil {
		s.forwardFailed(w, req, err)
		return
	}
	upReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(upReq)
	if err != nil {
		s.forwardFailed(w, req, err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if s.health != nil {
		s.health.AddSuccess()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.WithError(err).Warn("Failed to relay upstream response")
	}
}

func (s *Server) forwardFailed(w http.ResponseWriter, req rpcRequest, err error) {
	if s.health != nil {
		s.health.AddFailure()
	}
	metricForwardFailed.Inc()
	s.log.WithError(err).Warn("Transaction forward failed")
	writeResponse(s.log, w, errResponse(req.ID, codeInternalError, "upstream request failed"))
}

func writeResponse(log logrus.FieldLogger, w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}
