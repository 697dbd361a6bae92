package bot

import "github.com/ggonzalez94/bark-bot/internal/model"

// Menu tokens double as command names so command and menu invocations share
// one handler each.
const (
	tokenTotalVolume   = "total_volume"
	tokenLatestVolumes = "latest_volumes"
	tokenBalances      = "balances"
	tokenAllocation    = "allocation"
	tokenPnL           = "pnl"
	tokenMyWallet      = "my_wallet"
)

// MainMenu returns the fixed, order-stable menu of analytics commands. Every
// menu-triggered handler re-attaches it so the user never falls off into a
// dead end.
func MainMenu() *model.Menu {
	return &model.Menu{
		Rows: [][]model.MenuItem{
			{
				{Label: "Total Volume", Token: tokenTotalVolume},
				{Label: "Latest Volumes", Token: tokenLatestVolumes},
			},
			{
				{Label: "Balances", Token: tokenBalances},
				{Label: "Allocation", Token: tokenAllocation},
			},
			{
				{Label: "P&L", Token: tokenPnL},
				{Label: "My Wallet", Token: tokenMyWallet},
			},
		},
	}
}
