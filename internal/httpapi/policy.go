package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"stockwatch/internal/domain"
	"stockwatch/internal/watchlist"
)

// Name policy errors.
var (
	ErrEmptyName     = errors.New("watchlist name must not be empty")
	ErrNameTooLong   = errors.New("watchlist name is too long")
	ErrDuplicateName = errors.New("a watchlist with this name already exists")
	ErrEmptySymbol   = errors.New("symbol must not be empty")
)

// maxNameLen bounds watchlist names, in runes.
const maxNameLen = 64

// CheckWatchlistName trims name and rejects it when it is empty, too long or
// equal under case folding to the name of another watchlist in st. exceptID
// names the watchlist being renamed ("" on create).
func CheckWatchlistName(st *watchlist.State, name, exceptID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if n := len([]rune(name)); n > maxNameLen {
		return "", fmt.Errorf("%w: %d characters, at most %d", ErrNameTooLong, n, maxNameLen)
	}
	folder := cases.Fold()
	key := folder.String(name)
	for id, w := range st.Watchlists {
		if id == exceptID {
			continue
		}
		if folder.String(strings.TrimSpace(w.Name)) == key {
			return "", fmt.Errorf("%w: %q", ErrDuplicateName, w.Name)
		}
	}
	return name, nil
}

// checkMembership normalizes a membership from a request.
func checkMembership(symbol, name string) (domain.Membership, error) {
	m := domain.Membership{Symbol: domain.NormalizeSymbol(symbol), Name: strings.TrimSpace(name)}
	if m.Symbol == "" {
		return domain.Membership{}, ErrEmptySymbol
	}
	return m, nil
}
