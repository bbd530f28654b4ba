package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

type ProductBase struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

func (p ProductBase) Validate() error {
	if p.ID == "" {
		return errors.Join(ErrInvalidProduct, errors.New("empty id"))
	}
	if p.Price < 0 {
		return errors.Join(ErrInvalidProduct, errors.New("negative price"))
	}
	return nil
}

type Product struct {
	ProductBase
	Quantity int `json:"quantity"`
}

// Cart is the ordered list of cart entries. Values handed out by the store are
// copies; mutate through Clone.
type Cart []Product

func (c Cart) IndexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

type Summary struct {
	Items int             `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (c Cart) Summary() Summary {
	s := Summary{Total: decimal.Zero}
	for _, p := range c {
		s.Items += p.Quantity
		line := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Quantity)))
		s.Total = s.Total.Add(line)
	}
	return s
}

// Snapshot is a versioned copy of the cart queued for persistence.
type Snapshot struct {
	Version  uint64
	Products Cart
}
