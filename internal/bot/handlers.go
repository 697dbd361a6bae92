package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggonzalez94/bark-bot/internal/aggregate"
	"github.com/ggonzalez94/bark-bot/internal/chart"
	"github.com/ggonzalez94/bark-bot/internal/dune"
	"github.com/ggonzalez94/bark-bot/internal/model"
)

// Column names of the engine queries backing each command.
const (
	colTime         = "Time"
	colVolume       = "Volume"
	colBoughtSymbol = "token_bought_symbol"
	colSymbol       = "token_symbol"
	colBalance      = "token_balance"
	colValue        = "token_value"
	colPrice        = "current_price"
	colCostBasis    = "cost_basis"

	walletParamName = "Solana Wallet Address"

	legendSymbolWidth = 8
)

func (d *Dispatcher) handleStart(_ context.Context, ev model.Event) model.Reply {
	d.sessions.Begin(ev.UserID)
	return model.TextReply(msgGreeting)
}

func (d *Dispatcher) handleSaveWallet(_ context.Context, ev model.Event) model.Reply {
	d.sessions.Begin(ev.UserID)
	return model.TextReply(msgAskKey)
}

func (d *Dispatcher) handleHello(_ context.Context, ev model.Event) model.Reply {
	name := strings.TrimSpace(ev.FromName)
	if name == "" {
		name = "there"
	}
	return model.TextReply(fmt.Sprintf("Hello %s", name))
}

func (d *Dispatcher) handleMenu(_ context.Context, _ model.Event) model.Reply {
	return withMenu(model.TextReply(msgMenuTitle))
}

func (d *Dispatcher) handleMyWallet(ctx context.Context, ev model.Event) model.Reply {
	rec, reply, ok := d.resolveWallet(ctx, ev)
	if !ok {
		return reply
	}
	return withMenu(model.TextReply(fmt.Sprintf("Your public key is: %s", rec.Address)))
}

func (d *Dispatcher) handleRemoveWallet(ctx context.Context, ev model.Event) model.Reply {
	if err := d.wallets.DeleteAll(ctx, ev.UserID); err != nil {
		return d.errorReply(err)
	}
	return withMenu(model.TextReply(msgKeyRemoved))
}

func (d *Dispatcher) handleTotalVolume(ctx context.Context, _ model.Event) model.Reply {
	rows, err := d.engine.GetLatestResult(ctx, d.queries.TotalVolumeID)
	if err != nil {
		return d.errorReply(err)
	}
	if len(rows) == 0 {
		return d.noDataReply()
	}
	volume, ok := aggregate.Number(rows[0], colVolume)
	if !ok {
		return d.noDataReply()
	}
	return withMenu(model.TextReply(fmt.Sprintf("The total volume of the Bonk is: %.3f", volume)))
}

func (d *Dispatcher) handleLatestVolumes(ctx context.Context, _ model.Event) model.Reply {
	rows, err := d.engine.GetLatestResult(ctx, d.queries.LatestVolumesID)
	if err != nil {
		return d.errorReply(err)
	}
	if len(rows) == 0 {
		return d.noDataReply()
	}

	snapshot, label := aggregate.LatestSnapshot(rows, colTime, colVolume)
	var b strings.Builder
	fmt.Fprintf(&b, "Latest Volumes for Bonk (%s):", label)
	for _, row := range snapshot {
		fmt.Fprintf(&b, "\n%s : %s", aggregate.String(row, colBoughtSymbol), aggregate.FormatValue(row, colVolume))
	}
	return withMenu(model.TextReply(b.String()))
}

func (d *Dispatcher) handleBalances(ctx context.Context, ev model.Event) model.Reply {
	rec, reply, ok := d.resolveWallet(ctx, ev)
	if !ok {
		return reply
	}

	rows, err := d.engine.RunQuery(ctx, d.balancesQuery(rec.Address))
	if err != nil {
		return d.errorReply(err)
	}
	if len(rows) == 0 {
		return d.noDataReply()
	}

	sorted := aggregate.SortByValueDesc(rows, colValue)
	var b strings.Builder
	fmt.Fprintf(&b, "Balances for your wallet address (%s):", rec.Address)
	b.WriteString("\nToken Symbol : Token Balance : Total Token Value(USD)")
	for _, row := range sorted {
		fmt.Fprintf(&b, "\n%s : %s : %s",
			aggregate.String(row, colSymbol),
			aggregate.FormatValue(row, colBalance),
			aggregate.FormatValue(row, colValue))
	}
	return withMenu(model.TextReply(b.String()))
}

// handleAllocation emits the text summary first, then the pie chart. Tokens
// below 1% of the total are dropped from both; the chart is skipped entirely
// when nothing clears the threshold, while the text still reports the total.
func (d *Dispatcher) handleAllocation(ctx context.Context, ev model.Event) model.Reply {
	rec, reply, ok := d.resolveWallet(ctx, ev)
	if !ok {
		return reply
	}

	rows, err := d.engine.RunQuery(ctx, d.balancesQuery(rec.Address))
	if err != nil {
		return d.errorReply(err)
	}
	if len(rows) == 0 {
		return d.noDataReply()
	}

	var total float64
	for _, row := range rows {
		if v, valued := aggregate.Number(row, colValue); valued {
			total += v
		}
	}
	allocations := aggregate.FilterAllocations(rows, colSymbol, colValue)

	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio allocation for your wallet address (%s):", rec.Address)
	for _, a := range allocations {
		fmt.Fprintf(&b, "\n%s : %.1f%%", a.Label, a.Share*100)
	}
	fmt.Fprintf(&b, "\nTotal value: %.3f USD", total)

	reply = model.TextReply(b.String())
	if len(allocations) > 0 {
		series := make([]chart.Point, 0, len(allocations))
		for _, a := range allocations {
			series = append(series, chart.Point{
				Label: fmt.Sprintf("%s %.1f%%", aggregate.TruncateSymbol(a.Label, legendSymbolWidth), a.Share*100),
				Value: a.Value,
			})
		}
		img, err := d.charts.Render(chart.Pie, series)
		if err != nil {
			return d.errorReply(err)
		}
		reply.Artifacts = append(reply.Artifacts, model.Image(img, "Portfolio allocation"))
	}
	return withMenu(reply)
}

// handlePnL lists per-holding deltas with a gain/loss marker per row and one
// aggregate caption whose sign prefix comes from the aggregate sum, not from
// any individual row.
func (d *Dispatcher) handlePnL(ctx context.Context, ev model.Event) model.Reply {
	rec, reply, ok := d.resolveWallet(ctx, ev)
	if !ok {
		return reply
	}

	rows, err := d.engine.RunQuery(ctx, d.pnlQuery(rec.Address))
	if err != nil {
		return d.errorReply(err)
	}
	if len(rows) == 0 {
		return d.noDataReply()
	}

	summary := aggregate.ProfitAndLoss(rows, colSymbol, colBalance, colPrice, colCostBasis)
	var b strings.Builder
	fmt.Fprintf(&b, "P&L for your wallet address (%s):", rec.Address)
	for _, entry := range summary.Entries {
		marker := "🟢"
		if entry.Negative {
			marker = "🔴"
		}
		fmt.Fprintf(&b, "\n%s %s : %s", marker, entry.Symbol, aggregate.FormatSigned(entry.Delta))
	}

	caption := fmt.Sprintf("Total P&L: %s USD", aggregate.FormatSigned(summary.Total))
	return withMenu(model.TextReply(b.String(), caption))
}

func (d *Dispatcher) balancesQuery(address string) dune.Query {
	return dune.Query{
		Name: "Balances Query",
		ID:   d.queries.BalancesID,
		Parameters: []dune.Parameter{
			{Name: walletParamName, Type: dune.TypeText, Value: address},
		},
	}
}

func (d *Dispatcher) pnlQuery(address string) dune.Query {
	return dune.Query{
		Name: "PnL Query",
		ID:   d.queries.PnLID,
		Parameters: []dune.Parameter{
			{Name: walletParamName, Type: dune.TypeText, Value: address},
		},
	}
}
