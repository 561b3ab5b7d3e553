package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/tcfw/ledgercert/pkg/validator"
)

// EpochSource reports the newest epoch the node verifies votes for
type EpochSource interface {
	Latest() (*validator.Verifier, bool)
}

func WithEpochs(e EpochSource) Option {
	return func(a *Api) {
		a.epochs = e
	}
}

func init() {
	reg = append(reg, func() APIHandler { return &dkgApi{} })
}

type RandomnessResponse struct {
	BlockNumber uint64        `json:"block_number"`
	Randomness  hexutil.Bytes `json:"randomness"`
}

type DKGStatusResponse struct {
	Epoch              uint64 `json:"epoch"`
	Round              uint64 `json:"round"`
	BlockNumber        uint64 `json:"block_number"`
	ParticipatingNodes uint64 `json:"participating_nodes"`
}

type dkgApi struct {
	a *Api
}

func (d *dkgApi) Setup(a *Api, r *mux.Router) error {
	d.a = a

	r.HandleFunc("/dkg/status", d.status).Methods("GET")
	r.HandleFunc("/dkg/randomness/{block_number}", d.randomness).Methods("GET")

	return nil
}

func (d *dkgApi) randomness(w http.ResponseWriter, r *http.Request) {
	n, err := uintVar(r, "block_number")
	if err != nil {
		d.a.writeError(w, http.StatusBadRequest, err)
		return
	}

	seed, err := d.a.store.GetRandomness(r.Context(), n)
	d.a.writeResult(w, &RandomnessResponse{BlockNumber: n, Randomness: hexutil.Bytes(seed)}, len(seed) > 0, err)
}

// status reports the newest certified round and, when the node tracks
// epochs, the epoch it is currently verifying votes for
func (d *dkgApi) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	latest, err := d.a.store.LatestLedgerInfo(ctx)
	if err != nil {
		d.a.writeResult(w, nil, false, err)
		return
	}

	res := &DKGStatusResponse{}
	found := false

	if latest != nil {
		found = true
		res.Epoch = latest.Epoch()
		res.Round = latest.Round()
		res.BlockNumber = latest.CommitInfo.Version
	}

	if d.a.epochs != nil {
		if v, ok := d.a.epochs.Latest(); ok {
			res.Epoch = v.Epoch()
			res.ParticipatingNodes = v.ValidatorCount()
			d.a.writeJSON(w, res)
			return
		}
	}

	if found {
		n, ok, err := d.a.store.GetValidatorCountByEpoch(ctx, res.Epoch)
		if err != nil {
			d.a.writeResult(w, nil, false, err)
			return
		}
		if ok {
			res.ParticipatingNodes = n
		}
	}

	d.a.writeResult(w, res, found, nil)
}
