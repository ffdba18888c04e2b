package subgraph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/machinebox/graphql"

	"yieldScope/internal/model"
)

const DefaultBlocksEndpoint = "https://api.thegraph.com/subgraphs/name/blocklytics/ethereum-blocks"

const blockAfterQuery = `
query blockAfter($timestamp: BigInt!) {
  blocks(first: 1, orderBy: timestamp, orderDirection: asc, where: { timestamp_gt: $timestamp }) {
    number
    timestamp
  }
}`

type blocksResponse struct {
	Blocks []struct {
		Number    string `json:"number"`
		Timestamp string `json:"timestamp"`
	} `json:"blocks"`
}

// BlocksClient resolves block numbers from a block index subgraph.
type BlocksClient struct {
	ep *endpoint
}

func NewBlocksClient(url string, opts ...ClientOption) (*BlocksClient, error) {
	ep, err := newEndpoint(url, opts...)
	if err != nil {
		return nil, err
	}
	return &BlocksClient{ep: ep}, nil
}

// BlockAfter returns the earliest block with a timestamp strictly greater than timestamp.
func (c *BlocksClient) BlockAfter(ctx context.Context, timestamp int64) (model.ReferenceBlock, error) {
	req := graphql.NewRequest(blockAfterQuery)
	req.Var("timestamp", strconv.FormatInt(timestamp, 10))

	var resp blocksResponse
	if err := c.ep.run(ctx, "block after", req, &resp); err != nil {
		return model.ReferenceBlock{}, err
	}
	if len(resp.Blocks) == 0 {
		return model.ReferenceBlock{}, fmt.Errorf("block after %d: %w", timestamp, ErrNoBlocks)
	}

	number, err := parseBlockNumber(resp.Blocks[0].Number)
	if err != nil {
		return model.ReferenceBlock{}, fmt.Errorf("block after %d: %w", timestamp, err)
	}
	ref := model.ReferenceBlock{Number: number}
	if resp.Blocks[0].Timestamp != "" {
		if ts, err := strconv.ParseInt(resp.Blocks[0].Timestamp, 10, 64); err == nil {
			ref.Timestamp = ts
		}
	}
	return ref, nil
}
