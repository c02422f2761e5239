package domain

import (
	"fmt"
	"strings"
)

// PageSize is the fixed number of items in a listing page.
const PageSize = 10

// Ordering fields accepted by listings. Created is the default.
const (
	OrderByCreated = "created"
	OrderByID      = "id"
	OrderByLabel   = "label"
	OrderByBalance = "balance"
	OrderByTxID    = "txid"
	OrderByAmount  = "amount"
	OrderByWallet  = "wallet"
)

var (
	// WalletOrderings lists the fields wallets can be ordered by.
	WalletOrderings = []string{OrderByCreated, OrderByID, OrderByLabel, OrderByBalance}
	// TransactionOrderings lists the fields transactions can be ordered by.
	TransactionOrderings = []string{OrderByCreated, OrderByID, OrderByTxID, OrderByAmount, OrderByWallet}
)

// Ordering describes the sort order of a listing.
type Ordering struct {
	Field string
	Desc  bool
}

// ParseOrdering parses "field" or "-field". An empty string gives creation time ascending.
func ParseOrdering(s string, allowed []string) (Ordering, error) {
	if s == "" {
		return Ordering{Field: OrderByCreated}, nil
	}

	o := Ordering{Field: s}
	if strings.HasPrefix(s, "-") {
		o = Ordering{Field: s[1:], Desc: true}
	}

	for _, f := range allowed {
		if f == o.Field {
			return o, nil
		}
	}

	return Ordering{}, fmt.Errorf("%w: cannot order by %q", ErrInvalidState, s)
}

// String renders the ordering back in "-field" notation.
func (o Ordering) String() string {
	if o.Field == "" {
		return OrderByCreated
	}

	if o.Desc {
		return "-" + o.Field
	}

	return o.Field
}

// Page is one page of a listing together with the total number of matching items.
type Page[T any] struct {
	Count int64 `json:"count"`
	Items []T   `json:"results"`
}

// PageOffset returns the offset of the 1-based page. Pages below 1 are treated as the first page.
func PageOffset(page int) int {
	if page < 1 {
		return 0
	}

	return (page - 1) * PageSize
}
