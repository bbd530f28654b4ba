package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrCorruptCart = errors.New("corrupt cart data")

func EncodeCart(c Cart) ([]byte, error) {
	if c == nil {
		c = Cart{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	return data, nil
}

// DecodeCart parses a persisted cart and rejects blobs that break the cart
// invariants: empty or duplicate ids and quantities below 1.
func DecodeCart(data []byte) (Cart, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var c Cart
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrCorruptCart)
	}

	seen := make(map[string]struct{}, len(c))
	for i, p := range c {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has empty id", ErrCorruptCart, i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrCorruptCart, p.ID)
		}
		if p.Quantity < 1 {
			return nil, fmt.Errorf("%w: entry %q has quantity %d", ErrCorruptCart, p.ID, p.Quantity)
		}
		seen[p.ID] = struct{}{}
	}

	if c == nil {
		c = Cart{}
	}
	return c, nil
}
