package auction_client

const (
	// API Endpoints
	TeamsEndpoint         = "/teams"
	TeamPointsEndpoint    = "/teams/%s/points"
	PlayersEndpoint       = "/players"
	PlayerEndpoint        = "/players/%s"
	StartGameEndpoint     = "/game/start"
	GameStateEndpoint     = "/game/state"
	BidEndpoint           = "/game/bid"
	AdminTimerEndpoint    = "/game/admin/timer"
	AdminDecisionEndpoint = "/game/admin/decision"
	AuctionEndpoint       = "/auctions/%s"
	InviteEndpoint        = "/invite/validate/%s"
	JoinLobbyEndpoint     = "/lobby/join"

	// Push connection
	SocketEndpoint = "/ws"

	// Headers
	AuctionIDHeader     = "X-Auction-Id"
	AuthorizationHeader = "Authorization"
)
