package subgraph

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"

	"yieldScope/internal/model"
)

const DefaultExchangeEndpoint = "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v2"

const topPairsQuery = `
query topPairs($first: Int!) {
  pairs(first: $first, orderBy: reserveUSD, orderDirection: desc) {
    id
  }
}`

const pairQuery = `
query pair($id: ID!) {
  pair(id: $id) {
    token0 { symbol }
    token1 { symbol }
    reserveUSD
    volumeUSD
  }
}`

const pairAtBlockQuery = `
query pairAtBlock($id: ID!, $block: Int!) {
  pair(id: $id, block: { number: $block }) {
    token0 { symbol }
    token1 { symbol }
    reserveUSD
    volumeUSD
  }
}`

type topPairsResponse struct {
	Pairs []struct {
		ID string `json:"id"`
	} `json:"pairs"`
}

type tokenInfo struct {
	Symbol string `json:"symbol"`
}

type pairResponse struct {
	Pair *struct {
		Token0     tokenInfo `json:"token0"`
		Token1     tokenInfo `json:"token1"`
		ReserveUSD string    `json:"reserveUSD"`
		VolumeUSD  string    `json:"volumeUSD"`
	} `json:"pair"`
}

// ExchangeClient reads pairs from the exchange subgraph.
type ExchangeClient struct {
	ep *endpoint
}

func NewExchangeClient(url string, opts ...ClientOption) (*ExchangeClient, error) {
	ep, err := newEndpoint(url, opts...)
	if err != nil {
		return nil, err
	}
	return &ExchangeClient{ep: ep}, nil
}

// TopPairs returns up to first pair ids ordered by descending reserveUSD.
// Duplicate ids are dropped, keeping the first occurrence.
func (c *ExchangeClient) TopPairs(ctx context.Context, first int) ([]string, error) {
	if first <= 0 {
		return nil, fmt.Errorf("pair count must be greater than zero")
	}
	req := graphql.NewRequest(topPairsQuery)
	req.Var("first", first)

	var resp topPairsResponse
	if err := c.ep.run(ctx, "top pairs", req, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Pairs))
	seen := make(map[string]struct{}, len(resp.Pairs))
	for _, p := range resp.Pairs {
		if p.ID == "" {
			return nil, fmt.Errorf("top pairs: %w: empty pair id", ErrMalformedResponse)
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// PairSnapshot loads a pair at the latest indexed state, or at block when non-nil.
func (c *ExchangeClient) PairSnapshot(ctx context.Context, pairID string, block *uint64) (model.PairSnapshot, error) {
	var req *graphql.Request
	if block != nil {
		req = graphql.NewRequest(pairAtBlockQuery)
		req.Var("block", *block)
	} else {
		req = graphql.NewRequest(pairQuery)
	}
	req.Var("id", pairID)

	op := "pair " + pairID
	var resp pairResponse
	if err := c.ep.run(ctx, op, req, &resp); err != nil {
		return model.PairSnapshot{}, err
	}
	if resp.Pair == nil {
		return model.PairSnapshot{}, fmt.Errorf("%s: %w: pair not found", op, ErrMalformedResponse)
	}

	reserve, err := parseDecimal("reserveUSD", resp.Pair.ReserveUSD)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	volume, err := parseDecimal("volumeUSD", resp.Pair.VolumeUSD)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	snap := model.PairSnapshot{
		PairID:       pairID,
		Token0Symbol: resp.Pair.Token0.Symbol,
		Token1Symbol: resp.Pair.Token1.Symbol,
		ReserveUSD:   reserve,
		VolumeUSD:    volume,
	}
	if block != nil {
		number := *block
		snap.Block = &number
	}
	return snap, nil
}
