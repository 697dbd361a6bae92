package bot

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ggonzalez94/bark-bot/internal/chart"
	"github.com/ggonzalez94/bark-bot/internal/config"
	"github.com/ggonzalez94/bark-bot/internal/dune"
	"github.com/ggonzalez94/bark-bot/internal/model"
	"github.com/ggonzalez94/bark-bot/internal/session"
	"github.com/ggonzalez94/bark-bot/internal/wallet"
)

const validAddress = "7eRoDPvmmxPgswXw3hRYSLS4NEhwMgjjAxw3re8zbUCQ"

var testQueries = config.QuerySettings{
	TotalVolumeID:   1,
	LatestVolumesID: 2,
	BalancesID:      3,
	PnLID:           4,
}

type fakeEngine struct {
	latest map[int]model.ResultSet
	runFn  func(q dune.Query) (model.ResultSet, error)
}

func (f *fakeEngine) GetLatestResult(_ context.Context, queryID int) (model.ResultSet, error) {
	return f.latest[queryID], nil
}

func (f *fakeEngine) RunQuery(_ context.Context, q dune.Query) (model.ResultSet, error) {
	if f.runFn != nil {
		return f.runFn(q)
	}
	return nil, nil
}

type fakeRenderer struct {
	kinds  []chart.Kind
	series [][]chart.Point
	err    error
}

func (f *fakeRenderer) Render(kind chart.Kind, series []chart.Point) ([]byte, error) {
	f.kinds = append(f.kinds, kind)
	f.series = append(f.series, series)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png-bytes"), nil
}

func newTestDispatcher(engine *fakeEngine, renderer *fakeRenderer) (*Dispatcher, *wallet.MemoryStore) {
	store := wallet.NewMemory()
	d := New(store, engine, renderer, session.NewManager(), testQueries)
	return d, store
}

func command(userID model.UserID, token string) model.Event {
	return model.Event{Kind: model.EventCommand, UserID: userID, Token: token}
}

func message(userID model.UserID, text string) model.Event {
	return model.Event{Kind: model.EventMessage, UserID: userID, Text: text}
}

func saveWallet(t *testing.T, d *Dispatcher, userID model.UserID) {
	t.Helper()
	d.Dispatch(context.Background(), command(userID, "save_wallet"))
	reply := d.Dispatch(context.Background(), message(userID, validAddress))
	if len(reply.Artifacts) != 1 || reply.Artifacts[0].Text != msgKeyStored {
		t.Fatalf("wallet save failed: %+v", reply)
	}
}

func TestSaveWalletDialogueLastWriteWins(t *testing.T) {
	d, store := newTestDispatcher(&fakeEngine{}, &fakeRenderer{})

	// Starting the dialogue twice keeps exactly one pending dialogue.
	d.Dispatch(context.Background(), command("u1", "start"))
	d.Dispatch(context.Background(), command("u1", "save_wallet"))
	reply := d.Dispatch(context.Background(), message("u1", validAddress))
	if reply.Artifacts[0].Text != msgKeyStored {
		t.Fatalf("expected stored confirmation, got %+v", reply)
	}

	rec, err := store.Get(context.Background(), "u1")
	if err != nil || rec == nil {
		t.Fatalf("expected one record, got %+v (%v)", rec, err)
	}
	if rec.Address != validAddress {
		t.Fatalf("unexpected address: %q", rec.Address)
	}

	// A second text is not consumed by any dialogue.
	reply = d.Dispatch(context.Background(), message("u1", validAddress))
	if reply.Artifacts[0].Text != msgHint {
		t.Fatalf("expected hint after dialogue end, got %+v", reply)
	}
}

func TestMalformedAddressCancelsDialogue(t *testing.T) {
	d, store := newTestDispatcher(&fakeEngine{}, &fakeRenderer{})

	for _, bad := range []string{
		strings.Repeat("a", 43) + "0",
		strings.Repeat("a", 43) + "O",
	} {
		d.Dispatch(context.Background(), command("u1", "start"))
		reply := d.Dispatch(context.Background(), message("u1", bad))
		if len(reply.Artifacts) != 1 || reply.Artifacts[0].Text != msgCancelled {
			t.Fatalf("expected cancellation for %q, got %+v", bad, reply)
		}

		rec, err := store.Get(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec != nil {
			t.Fatalf("no record should be stored after cancel, got %+v", rec)
		}
	}
}

func TestAnalyticsWithoutWallet(t *testing.T) {
	d, _ := newTestDispatcher(&fakeEngine{}, &fakeRenderer{})

	for _, token := range []string{tokenBalances, tokenAllocation, tokenPnL, tokenMyWallet} {
		reply := d.Dispatch(context.Background(), command("u1", token))
		if len(reply.Artifacts) != 1 || reply.Artifacts[0].Text != msgNoWallet {
			t.Fatalf("%s: expected fixed no-wallet message, got %+v", token, reply)
		}
		if reply.Menu == nil {
			t.Fatalf("%s: menu must be re-offered", token)
		}
	}
}

func TestEmptyResultSetYieldsSingleNoDataArtifact(t *testing.T) {
	engine := &fakeEngine{
		latest: map[int]model.ResultSet{},
		runFn: func(q dune.Query) (model.ResultSet, error) {
			return model.ResultSet{}, nil
		},
	}
	renderer := &fakeRenderer{}
	d, _ := newTestDispatcher(engine, renderer)
	saveWallet(t, d, "u1")

	for _, token := range []string{tokenTotalVolume, tokenLatestVolumes, tokenBalances, tokenAllocation, tokenPnL} {
		reply := d.Dispatch(context.Background(), command("u1", token))
		if len(reply.Artifacts) != 1 {
			t.Fatalf("%s: expected exactly one artifact, got %+v", token, reply.Artifacts)
		}
		if reply.Artifacts[0].Kind != model.ArtifactText || reply.Artifacts[0].Text != msgNoData {
			t.Fatalf("%s: expected no-data text, got %+v", token, reply.Artifacts[0])
		}
	}
	if len(renderer.kinds) != 0 {
		t.Fatalf("no charts should be rendered, got %v", renderer.kinds)
	}
}

func TestEngineFailureSurfacesCauseAndKeepsMenu(t *testing.T) {
	engine := &fakeEngine{
		runFn: func(q dune.Query) (model.ResultSet, error) {
			return nil, errors.New("query execution failed: underlying boom")
		},
	}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})
	saveWallet(t, d, "u1")

	reply := d.Dispatch(context.Background(), command("u1", tokenBalances))
	if len(reply.Artifacts) != 1 {
		t.Fatalf("expected one error artifact, got %+v", reply.Artifacts)
	}
	if !strings.Contains(reply.Artifacts[0].Text, "underlying boom") {
		t.Fatalf("error cause should be embedded, got %q", reply.Artifacts[0].Text)
	}
	if reply.Menu == nil {
		t.Fatal("menu must still be offered after a failure")
	}
}

func TestTotalVolumeRendersFirstRow(t *testing.T) {
	engine := &fakeEngine{latest: map[int]model.ResultSet{
		testQueries.TotalVolumeID: {{"Volume": 1234.5678}},
	}}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})

	reply := d.Dispatch(context.Background(), command("u1", tokenTotalVolume))
	if got := reply.Artifacts[0].Text; got != "The total volume of the Bonk is: 1234.568" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestTotalVolumeNullValueIsNoData(t *testing.T) {
	engine := &fakeEngine{latest: map[int]model.ResultSet{
		testQueries.TotalVolumeID: {{"Volume": nil}},
	}}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})

	reply := d.Dispatch(context.Background(), command("u1", tokenTotalVolume))
	if len(reply.Artifacts) != 1 || reply.Artifacts[0].Text != msgNoData {
		t.Fatalf("null volume must not render as a number, got %+v", reply.Artifacts)
	}
}

func TestLatestVolumesGroupsAndSorts(t *testing.T) {
	engine := &fakeEngine{latest: map[int]model.ResultSet{
		testQueries.LatestVolumesID: {
			{"Time": "2024-05-23 00:00:00.000 UTC", "token_bought_symbol": "OLD", "Volume": 50.0},
			{"Time": "2024-05-24 00:00:00.000 UTC", "token_bought_symbol": "BONK", "Volume": 10.0},
			{"Time": "2024-05-24 00:00:00.000 UTC", "token_bought_symbol": "WIF", "Volume": 30.0},
		},
	}}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})

	reply := d.Dispatch(context.Background(), command("u1", tokenLatestVolumes))
	want := "Latest Volumes for Bonk (2024-05-24 00:00:00.000 UTC):" +
		"\nWIF : 30.000" +
		"\nBONK : 10.000"
	if got := reply.Artifacts[0].Text; got != want {
		t.Fatalf("unexpected text:\n%q\nwant:\n%q", got, want)
	}
}

func TestBalancesSortsNullsAsZeroButRendersNA(t *testing.T) {
	engine := &fakeEngine{
		runFn: func(q dune.Query) (model.ResultSet, error) {
			if q.ID != testQueries.BalancesID {
				return nil, fmt.Errorf("unexpected query id %d", q.ID)
			}
			if len(q.Parameters) != 1 || q.Parameters[0].Name != walletParamName || q.Parameters[0].Value != validAddress {
				return nil, fmt.Errorf("unexpected parameters: %+v", q.Parameters)
			}
			return model.ResultSet{
				{"token_symbol": "X", "token_balance": "12", "token_value": nil},
				{"token_symbol": "Y", "token_balance": "3", "token_value": 5.0},
				{"token_symbol": "Z", "token_balance": "9", "token_value": nil},
			}, nil
		},
	}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})
	saveWallet(t, d, "u1")

	reply := d.Dispatch(context.Background(), command("u1", tokenBalances))
	want := fmt.Sprintf("Balances for your wallet address (%s):", validAddress) +
		"\nToken Symbol : Token Balance : Total Token Value(USD)" +
		"\nY : 3.000 : 5.000" +
		"\nX : 12.000 : N/A" +
		"\nZ : 9.000 : N/A"
	if got := reply.Artifacts[0].Text; got != want {
		t.Fatalf("unexpected text:\n%q\nwant:\n%q", got, want)
	}
}

func TestAllocationFiltersChartInputAtOnePercent(t *testing.T) {
	engine := &fakeEngine{
		runFn: func(q dune.Query) (model.ResultSet, error) {
			return model.ResultSet{
				{"token_symbol": "BIG", "token_value": 970.0},
				{"token_symbol": "MID", "token_value": 20.0},
				{"token_symbol": "LOW", "token_value": 9.0},
				{"token_symbol": "DUST", "token_value": 1.0},
			}, nil
		},
	}
	renderer := &fakeRenderer{}
	d, _ := newTestDispatcher(engine, renderer)
	saveWallet(t, d, "u1")

	reply := d.Dispatch(context.Background(), command("u1", tokenAllocation))
	if len(reply.Artifacts) != 2 {
		t.Fatalf("expected text plus chart, got %+v", reply.Artifacts)
	}
	if reply.Artifacts[0].Kind != model.ArtifactText || reply.Artifacts[1].Kind != model.ArtifactImage {
		t.Fatalf("expected text before image, got %+v", reply.Artifacts)
	}

	if len(renderer.kinds) != 1 || renderer.kinds[0] != chart.Pie {
		t.Fatalf("expected one pie chart, got %v", renderer.kinds)
	}
	series := renderer.series[0]
	if len(series) != 2 {
		t.Fatalf("chart input should keep exactly two tokens, got %+v", series)
	}
	if series[0].Value != 970.0 || series[1].Value != 20.0 {
		t.Fatalf("unexpected chart values: %+v", series)
	}
	if !strings.HasPrefix(series[0].Label, "BIG") || !strings.Contains(series[0].Label, "97.0%") {
		t.Fatalf("unexpected legend label: %q", series[0].Label)
	}
}

func TestAllocationAllNullSkipsChartButReportsZeroTotal(t *testing.T) {
	engine := &fakeEngine{
		runFn: func(q dune.Query) (model.ResultSet, error) {
			return model.ResultSet{
				{"token_symbol": "A", "token_value": nil},
				{"token_symbol": "B", "token_value": nil},
			}, nil
		},
	}
	renderer := &fakeRenderer{}
	d, _ := newTestDispatcher(engine, renderer)
	saveWallet(t, d, "u1")

	reply := d.Dispatch(context.Background(), command("u1", tokenAllocation))
	if len(reply.Artifacts) != 1 || reply.Artifacts[0].Kind != model.ArtifactText {
		t.Fatalf("expected text only, got %+v", reply.Artifacts)
	}
	if !strings.Contains(reply.Artifacts[0].Text, "Total value: 0.000 USD") {
		t.Fatalf("text should report zero total, got %q", reply.Artifacts[0].Text)
	}
	if len(renderer.kinds) != 0 {
		t.Fatalf("chart must be skipped, got %v", renderer.kinds)
	}
}

func TestPnLAggregateCaptionSign(t *testing.T) {
	rows := model.ResultSet{
		{"token_symbol": "A", "token_balance": 1.0, "current_price": 11.0, "cost_basis": 1.0},
		{"token_symbol": "B", "token_balance": 1.0, "current_price": 1.0, "cost_basis": 4.0},
		{"token_symbol": "C", "token_balance": 1.0, "current_price": 3.0, "cost_basis": 1.0},
	}
	engine := &fakeEngine{runFn: func(q dune.Query) (model.ResultSet, error) { return rows, nil }}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})
	saveWallet(t, d, "u1")

	reply := d.Dispatch(context.Background(), command("u1", tokenPnL))
	if len(reply.Artifacts) != 2 {
		t.Fatalf("expected body plus caption, got %+v", reply.Artifacts)
	}
	if got := reply.Artifacts[1].Text; got != "Total P&L: +9.000 USD" {
		t.Fatalf("unexpected caption: %q", got)
	}
	if !strings.Contains(reply.Artifacts[0].Text, "🔴 B : -3.000") {
		t.Fatalf("expected loss marker for B, got %q", reply.Artifacts[0].Text)
	}

	rows = model.ResultSet{
		{"token_symbol": "A", "token_balance": 1.0, "current_price": 0.0, "cost_basis": 10.0},
		{"token_symbol": "B", "token_balance": 1.0, "current_price": 2.0, "cost_basis": 5.0},
		{"token_symbol": "C", "token_balance": 1.0, "current_price": 3.0, "cost_basis": 1.0},
	}
	reply = d.Dispatch(context.Background(), command("u1", tokenPnL))
	if got := reply.Artifacts[1].Text; got != "Total P&L: -11.000 USD" {
		t.Fatalf("unexpected caption: %q", got)
	}
}

func TestMenuSelectionMatchesCommandInvocation(t *testing.T) {
	engine := &fakeEngine{latest: map[int]model.ResultSet{
		testQueries.TotalVolumeID: {{"Volume": 7.0}},
	}}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})

	fromCommand := d.Dispatch(context.Background(), command("u1", tokenTotalVolume))
	fromMenu := d.Dispatch(context.Background(), model.Event{Kind: model.EventMenu, UserID: "u1", Token: tokenTotalVolume})
	if !reflect.DeepEqual(fromCommand, fromMenu) {
		t.Fatalf("command and menu triggers must share one handler:\n%+v\n%+v", fromCommand, fromMenu)
	}

	// Idempotence: the same token with unchanged backing data yields
	// equivalent artifacts.
	again := d.Dispatch(context.Background(), command("u1", tokenTotalVolume))
	if !reflect.DeepEqual(fromCommand, again) {
		t.Fatalf("repeat invocation should be equivalent:\n%+v\n%+v", fromCommand, again)
	}
}

func TestAnalyticsRepliesReattachFixedMenu(t *testing.T) {
	engine := &fakeEngine{latest: map[int]model.ResultSet{
		testQueries.TotalVolumeID: {{"Volume": 7.0}},
	}}
	d, _ := newTestDispatcher(engine, &fakeRenderer{})

	reply := d.Dispatch(context.Background(), command("u1", tokenTotalVolume))
	if reply.Menu == nil {
		t.Fatal("expected menu attachment")
	}
	if !reflect.DeepEqual(reply.Menu, MainMenu()) {
		t.Fatalf("menu must be the fixed main menu, got %+v", reply.Menu)
	}
}

func TestUnknownTokenShowsMenu(t *testing.T) {
	d, _ := newTestDispatcher(&fakeEngine{}, &fakeRenderer{})
	reply := d.Dispatch(context.Background(), command("u1", "moonshot"))
	if reply.Artifacts[0].Text != msgUnknown || reply.Menu == nil {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestMyWalletAndRemoveWallet(t *testing.T) {
	d, store := newTestDispatcher(&fakeEngine{}, &fakeRenderer{})
	saveWallet(t, d, "u1")

	reply := d.Dispatch(context.Background(), command("u1", tokenMyWallet))
	if got := reply.Artifacts[0].Text; got != "Your public key is: "+validAddress {
		t.Fatalf("unexpected text: %q", got)
	}

	reply = d.Dispatch(context.Background(), command("u1", "remove_wallet"))
	if reply.Artifacts[0].Text != msgKeyRemoved {
		t.Fatalf("unexpected text: %+v", reply)
	}
	if reply.Menu == nil {
		t.Fatal("menu must be re-offered after removal")
	}
	rec, err := store.Get(context.Background(), "u1")
	if err != nil || rec != nil {
		t.Fatalf("record should be gone, got %+v (%v)", rec, err)
	}
}

func TestHelloGreetsByName(t *testing.T) {
	d, _ := newTestDispatcher(&fakeEngine{}, &fakeRenderer{})

	reply := d.Dispatch(context.Background(), model.Event{Kind: model.EventCommand, UserID: "u1", Token: "hello", FromName: "Ada"})
	if got := reply.Artifacts[0].Text; got != "Hello Ada" {
		t.Fatalf("unexpected greeting: %q", got)
	}

	reply = d.Dispatch(context.Background(), command("u1", "hello"))
	if got := reply.Artifacts[0].Text; got != "Hello there" {
		t.Fatalf("unexpected fallback greeting: %q", got)
	}
}
