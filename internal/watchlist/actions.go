package watchlist

import (
	"fmt"

	"stockwatch/internal/domain"
)

// ActionType enumerates the state transitions a Store accepts.
type ActionType int

const (
	// ActInitializeDefault synthesizes the default watchlist when none exists.
	ActInitializeDefault ActionType = iota
	// ActCreateWatchlist adds a new, empty watchlist.
	ActCreateWatchlist
	// ActRenameWatchlist changes a watchlist's name.
	ActRenameWatchlist
	// ActDeleteWatchlist removes a watchlist other than the default.
	ActDeleteWatchlist
	// ActAddStock appends a membership to a watchlist.
	ActAddStock
	// ActRemoveStock removes a symbol from a watchlist.
	ActRemoveStock
	// ActToggleStock removes a symbol if present, otherwise adds it.
	ActToggleStock
	// ActSetDefault points the default at another watchlist.
	ActSetDefault
	// ActClearDefault empties the default watchlist.
	ActClearDefault
)

var actionNames = [...]string{
	ActInitializeDefault: "initialize_default",
	ActCreateWatchlist:   "create_watchlist",
	ActRenameWatchlist:   "rename_watchlist",
	ActDeleteWatchlist:   "delete_watchlist",
	ActAddStock:          "add_stock",
	ActRemoveStock:       "remove_stock",
	ActToggleStock:       "toggle_stock",
	ActSetDefault:        "set_default",
	ActClearDefault:      "clear_default",
}

func (t ActionType) String() string {
	if t >= 0 && int(t) < len(actionNames) {
		return actionNames[t]
	}
	return fmt.Sprintf("ActionType(%d)", int(t))
}

// Action is a request to change the State. Only the fields relevant to Type
// are read. For stock actions an empty WatchlistID targets the default
// watchlist.
type Action struct {
	Type        ActionType
	WatchlistID string
	Name        string
	Stock       domain.Membership
}

// InitializeDefault returns an ActInitializeDefault action.
func InitializeDefault() Action {
	return Action{Type: ActInitializeDefault}
}

// CreateWatchlist returns an action creating a watchlist called name.
func CreateWatchlist(name string) Action {
	return Action{Type: ActCreateWatchlist, Name: name}
}

// RenameWatchlist returns an action renaming watchlist id.
func RenameWatchlist(id, name string) Action {
	return Action{Type: ActRenameWatchlist, WatchlistID: id, Name: name}
}

// DeleteWatchlist returns an action deleting watchlist id.
func DeleteWatchlist(id string) Action {
	return Action{Type: ActDeleteWatchlist, WatchlistID: id}
}

// AddStock returns an action adding m to watchlist id ("" for the default).
// m.AddedAt is ignored; the store stamps the insertion time.
func AddStock(id string, m domain.Membership) Action {
	return Action{Type: ActAddStock, WatchlistID: id, Stock: m}
}

// RemoveStock returns an action removing symbol from watchlist id ("" for
// the default).
func RemoveStock(id, symbol string) Action {
	return Action{Type: ActRemoveStock, WatchlistID: id, Stock: domain.Membership{Symbol: symbol}}
}

// ToggleStock returns an action that removes m.Symbol from watchlist id if
// present and adds m otherwise.
func ToggleStock(id string, m domain.Membership) Action {
	return Action{Type: ActToggleStock, WatchlistID: id, Stock: m}
}

// SetDefault returns an action making watchlist id the default.
func SetDefault(id string) Action {
	return Action{Type: ActSetDefault, WatchlistID: id}
}

// ClearDefault returns an action emptying the default watchlist.
func ClearDefault() Action {
	return Action{Type: ActClearDefault}
}
