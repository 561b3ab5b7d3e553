package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
)

const (
	clientTimeout = 10 * time.Second
)

// Client queries a running daemon's HTTP api. Missing records are
// reported as storage.ErrNotFound.
type Client struct {
	base string
	hc   *http.Client
}

func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}

	return &Client{
		base: strings.TrimRight(addr, "/"),
		hc:   &http.Client{Timeout: clientTimeout},
	}
}

func (c *Client) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "connecting to daemon")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return errors.Wrap(storage.ErrNotFound, path)
	default:
		e := &errorResponse{}
		if err := json.NewDecoder(resp.Body).Decode(e); err != nil || e.Error == "" {
			return errors.Errorf("daemon returned %s", resp.Status)
		}
		return errors.Errorf("daemon returned %s: %s", resp.Status, e.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decoding response")
	}

	return nil
}

func (c *Client) LatestLedgerInfo(ctx context.Context) (*types.LedgerInfo, error) {
	li := &types.LedgerInfo{}
	if err := c.get(ctx, "/consensus/latest_ledger_info", li); err != nil {
		return nil, err
	}
	return li, nil
}

func (c *Client) LedgerInfoByEpoch(ctx context.Context, epoch uint64) (*types.LedgerInfo, error) {
	li := &types.LedgerInfo{}
	if err := c.get(ctx, fmt.Sprintf("/consensus/ledger_info/%d", epoch), li); err != nil {
		return nil, err
	}
	return li, nil
}

func (c *Client) Block(ctx context.Context, epoch, round uint64) (*types.Block, error) {
	b := &BlockResponse{}
	if err := c.get(ctx, fmt.Sprintf("/consensus/block/%d/%d", epoch, round), b); err != nil {
		return nil, err
	}
	return b.Block(), nil
}

func (c *Client) QC(ctx context.Context, epoch, round uint64) (*consensus.QuorumCertificate, error) {
	qc := &QCResponse{}
	if err := c.get(ctx, fmt.Sprintf("/consensus/qc/%d/%d", epoch, round), qc); err != nil {
		return nil, err
	}
	return qc.QuorumCertificate(), nil
}

func (c *Client) ValidatorCount(ctx context.Context, epoch uint64) (uint64, error) {
	v := &ValidatorCountResponse{}
	if err := c.get(ctx, fmt.Sprintf("/consensus/validator_count/%d", epoch), v); err != nil {
		return 0, err
	}
	return v.ValidatorCount, nil
}

func (c *Client) Randomness(ctx context.Context, blockNumber uint64) (types.RandomnessSeed, error) {
	v := &RandomnessResponse{}
	if err := c.get(ctx, fmt.Sprintf("/dkg/randomness/%d", blockNumber), v); err != nil {
		return nil, err
	}
	return types.RandomnessSeed(v.Randomness), nil
}

func (c *Client) DKGStatus(ctx context.Context) (*DKGStatusResponse, error) {
	v := &DKGStatusResponse{}
	if err := c.get(ctx, "/dkg/status", v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Client) Peers(ctx context.Context) ([]PeerResponse, error) {
	res := []PeerResponse{}
	if err := c.get(ctx, "/p2p/peers", &res); err != nil {
		return nil, err
	}
	return res, nil
}
