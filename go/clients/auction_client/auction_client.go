package auction_client

import (
	"github.com/chzzk-auction/auctionsync/go/clients"
)

type AuctionClient struct {
	*clients.BaseClient
}

// NewAuctionClient builds a client scoped to one auction. adminToken may be empty
// for captain/viewer sessions; admin calls will then be rejected by the server.
func NewAuctionClient(baseURL, auctionID, adminToken string) *AuctionClient {
	client := &AuctionClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if auctionID != "" {
		client.SetHeader(AuctionIDHeader, auctionID)
	}
	if adminToken != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+adminToken)
	}

	return client
}
