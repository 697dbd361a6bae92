// Package bot maps inbound chat events to handlers and shapes the replies.
// One handler serves both the slash-command and the menu-selection trigger
// for each operation.
package bot

import (
	"context"
	"fmt"

	"github.com/ggonzalez94/bark-bot/internal/chart"
	"github.com/ggonzalez94/bark-bot/internal/config"
	"github.com/ggonzalez94/bark-bot/internal/dune"
	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
	"github.com/ggonzalez94/bark-bot/internal/model"
	"github.com/ggonzalez94/bark-bot/internal/session"
	"github.com/ggonzalez94/bark-bot/internal/wallet"
)

// Engine executes named, parameterized analytics queries. Failures carry a
// human-readable cause that is surfaced verbatim to the user.
type Engine interface {
	GetLatestResult(ctx context.Context, queryID int) (model.ResultSet, error)
	RunQuery(ctx context.Context, q dune.Query) (model.ResultSet, error)
}

const (
	msgGreeting   = "Hi! My name is Bark. I am a bot that can help you with your Bonk account. Please enter your public wallet key now."
	msgAskKey     = "Please enter your public wallet key now."
	msgKeyStored  = "Thank you! Your public key stored."
	msgKeyRemoved = "Your public key removed."
	msgNoWallet   = "You have not saved your public key yet. Please save it with /save_wallet."
	msgCancelled  = "Action cancelled."
	msgNoData     = "No data available."
	msgHint       = "Use /menu to see what I can do."
	msgUnknown    = "I do not know that command."
	msgMenuTitle  = "What would you like to know?"
)

type handlerFunc func(ctx context.Context, ev model.Event) model.Reply

// Dispatcher routes events to handlers. All collaborators are injected so
// tests can substitute doubles; the dispatcher holds no cross-user mutable
// state of its own.
type Dispatcher struct {
	wallets  wallet.Store
	engine   Engine
	charts   chart.Renderer
	sessions *session.Manager
	queries  config.QuerySettings
	handlers map[string]handlerFunc
}

func New(wallets wallet.Store, engine Engine, charts chart.Renderer, sessions *session.Manager, queries config.QuerySettings) *Dispatcher {
	d := &Dispatcher{
		wallets:  wallets,
		engine:   engine,
		charts:   charts,
		sessions: sessions,
		queries:  queries,
	}
	d.handlers = map[string]handlerFunc{
		"start":            d.handleStart,
		"hello":            d.handleHello,
		"menu":             d.handleMenu,
		"save_wallet":      d.handleSaveWallet,
		"remove_wallet":    d.handleRemoveWallet,
		tokenMyWallet:      d.handleMyWallet,
		tokenTotalVolume:   d.handleTotalVolume,
		tokenLatestVolumes: d.handleLatestVolumes,
		tokenBalances:      d.handleBalances,
		tokenAllocation:    d.handleAllocation,
		tokenPnL:           d.handlePnL,
	}
	return d
}

// Dispatch processes one inbound event to completion and returns the reply
// for the user's turn. Every failure is scoped to this turn.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) model.Reply {
	switch ev.Kind {
	case model.EventMessage:
		return d.handleText(ctx, ev)
	case model.EventCommand, model.EventMenu:
		if handler, ok := d.handlers[ev.Token]; ok {
			return handler(ctx, ev)
		}
		return withMenu(model.TextReply(msgUnknown))
	default:
		return model.TextReply(msgHint)
	}
}

// handleText feeds free text to the user's pending dialogue, if any.
func (d *Dispatcher) handleText(ctx context.Context, ev model.Event) model.Reply {
	addr, outcome := d.sessions.Submit(ev.UserID, ev.Text)
	switch outcome {
	case session.OutcomeSaved:
		if err := d.wallets.Upsert(ctx, ev.UserID, addr.String()); err != nil {
			return d.errorReply(boterr.Wrap(boterr.CodeStore, "store wallet", err))
		}
		return model.TextReply(msgKeyStored)
	case session.OutcomeCancelled:
		return model.TextReply(msgCancelled)
	default:
		return model.TextReply(msgHint)
	}
}

// resolveWallet loads the caller's wallet record. An absent record is a
// normal outcome answered with the fixed no-wallet message, not a failure.
func (d *Dispatcher) resolveWallet(ctx context.Context, ev model.Event) (*wallet.Record, model.Reply, bool) {
	rec, err := d.wallets.Get(ctx, ev.UserID)
	if err != nil {
		return nil, d.errorReply(boterr.Wrap(boterr.CodeStore, "load wallet", err)), false
	}
	if rec == nil {
		return nil, withMenu(model.TextReply(msgNoWallet)), false
	}
	return rec, model.Reply{}, true
}

// errorReply surfaces an adapter failure to the user, cause text included,
// and still re-offers the menu so the turn ends cleanly.
func (d *Dispatcher) errorReply(err error) model.Reply {
	return withMenu(model.TextReply(fmt.Sprintf("Sorry, that did not work: %v", err)))
}

func (d *Dispatcher) noDataReply() model.Reply {
	return withMenu(model.TextReply(msgNoData))
}

func withMenu(reply model.Reply) model.Reply {
	reply.Menu = MainMenu()
	return reply
}
