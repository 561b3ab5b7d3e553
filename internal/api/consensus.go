package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
)

func init() {
	reg = append(reg, func() APIHandler { return &consensusApi{} })
}

type BlockResponse struct {
	Epoch          uint64          `json:"epoch"`
	Round          uint64          `json:"round"`
	ID             types.HashValue `json:"id"`
	Parent         types.HashValue `json:"parent_id"`
	Author         *types.Author   `json:"author,omitempty"`
	TimestampUsecs uint64          `json:"timestamp_usecs"`
	Payload        hexutil.Bytes   `json:"payload"`
}

func NewBlockResponse(b *types.Block) *BlockResponse {
	return &BlockResponse{
		Epoch:          b.Epoch,
		Round:          b.Round,
		ID:             b.ID,
		Parent:         b.Parent,
		Author:         b.Author,
		TimestampUsecs: b.TimestampUsecs,
		Payload:        b.Payload,
	}
}

func (b *BlockResponse) Block() *types.Block {
	return &types.Block{
		Epoch:          b.Epoch,
		Round:          b.Round,
		ID:             b.ID,
		Parent:         b.Parent,
		Author:         b.Author,
		TimestampUsecs: b.TimestampUsecs,
		Payload:        b.Payload,
	}
}

type QCResponse struct {
	LedgerInfo types.LedgerInfo `json:"ledger_info"`
	Signers    []types.Author   `json:"signers"`
	Signature  hexutil.Bytes    `json:"signature"`
}

func NewQCResponse(qc *consensus.QuorumCertificate) *QCResponse {
	return &QCResponse{
		LedgerInfo: qc.LedgerInfo,
		Signers:    qc.Signers,
		Signature:  qc.Signature,
	}
}

func (q *QCResponse) QuorumCertificate() *consensus.QuorumCertificate {
	return &consensus.QuorumCertificate{
		LedgerInfo: q.LedgerInfo,
		Signers:    q.Signers,
		Signature:  q.Signature,
	}
}

type ValidatorCountResponse struct {
	Epoch          uint64 `json:"epoch"`
	ValidatorCount uint64 `json:"validator_count"`
}

type consensusApi struct {
	a *Api
}

func (c *consensusApi) Setup(a *Api, r *mux.Router) error {
	c.a = a

	r.HandleFunc("/consensus/latest_ledger_info", c.latestLedgerInfo).Methods("GET")
	r.HandleFunc("/consensus/ledger_info/{epoch}", c.ledgerInfo).Methods("GET")
	r.HandleFunc("/consensus/block/{epoch}/{round}", c.block).Methods("GET")
	r.HandleFunc("/consensus/qc/{epoch}/{round}", c.qc).Methods("GET")
	r.HandleFunc("/consensus/validator_count/{epoch}", c.validatorCount).Methods("GET")

	return nil
}

func (c *consensusApi) latestLedgerInfo(w http.ResponseWriter, r *http.Request) {
	li, err := c.a.store.LatestLedgerInfo(r.Context())
	c.a.writeResult(w, li, li != nil, err)
}

func (c *consensusApi) ledgerInfo(w http.ResponseWriter, r *http.Request) {
	epoch, err := uintVar(r, "epoch")
	if err != nil {
		c.a.writeError(w, http.StatusBadRequest, err)
		return
	}

	li, err := c.a.store.GetLedgerInfoByEpoch(r.Context(), epoch)
	c.a.writeResult(w, li, li != nil, err)
}

func (c *consensusApi) epochRound(w http.ResponseWriter, r *http.Request) (uint64, uint64, bool) {
	epoch, err := uintVar(r, "epoch")
	if err != nil {
		c.a.writeError(w, http.StatusBadRequest, err)
		return 0, 0, false
	}

	round, err := uintVar(r, "round")
	if err != nil {
		c.a.writeError(w, http.StatusBadRequest, err)
		return 0, 0, false
	}

	return epoch, round, true
}

func (c *consensusApi) block(w http.ResponseWriter, r *http.Request) {
	epoch, round, ok := c.epochRound(w, r)
	if !ok {
		return
	}

	b, err := c.a.store.GetBlock(r.Context(), epoch, round)
	if err != nil || b == nil {
		c.a.writeResult(w, nil, false, err)
		return
	}

	c.a.writeJSON(w, NewBlockResponse(b))
}

func (c *consensusApi) qc(w http.ResponseWriter, r *http.Request) {
	epoch, round, ok := c.epochRound(w, r)
	if !ok {
		return
	}

	qc, err := c.a.store.GetQC(r.Context(), epoch, round)
	if err != nil || qc == nil {
		c.a.writeResult(w, nil, false, err)
		return
	}

	c.a.writeJSON(w, NewQCResponse(qc))
}

func (c *consensusApi) validatorCount(w http.ResponseWriter, r *http.Request) {
	epoch, err := uintVar(r, "epoch")
	if err != nil {
		c.a.writeError(w, http.StatusBadRequest, err)
		return
	}

	n, found, err := c.a.store.GetValidatorCountByEpoch(r.Context(), epoch)
	c.a.writeResult(w, &ValidatorCountResponse{Epoch: epoch, ValidatorCount: n}, found, err)
}
